package heap

import (
	"testing"

	"kcore/internal/cwe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base = 0x10000

func kindOf(v *Violation) Kind {
	if v == nil {
		return 0
	}
	return v.Kind
}

func Test_ShadowSequences(t *testing.T) {
	tests := []struct {
		name   string
		run    func(s *Shadow) *Violation
		expect Kind
		code   cwe.Code
	}{
		{
			name: "free interior pointer",
			run: func(s *Shadow) *Violation {
				s.OnAlloc(base, 32)
				return s.OnFree(base + 16)
			},
			expect: InvalidFree,
			code:   761,
		},
		{
			name: "free stack address",
			run: func(s *Shadow) *Violation {
				s.OnAlloc(base, 32)
				return s.OnFree(0x7ffffff0)
			},
			expect: InvalidFree,
			code:   590,
		},
		{
			name: "double free",
			run: func(s *Shadow) *Violation {
				s.OnAlloc(base, 8)
				s.OnFree(base)
				return s.OnFree(base)
			},
			expect: DoubleFree,
			code:   415,
		},
		{
			name: "write before buffer",
			run: func(s *Shadow) *Violation {
				s.OnAlloc(base, 10)
				return s.OnAccess(base-1, 1, true)
			},
			expect: OutOfBounds,
			code:   787,
		},
		{
			name: "read spanning end",
			run: func(s *Shadow) *Violation {
				s.OnAlloc(base, 10)
				return s.OnAccess(base+8, 4, false)
			},
			expect: OutOfBounds,
			code:   125,
		},
		{
			name: "read in red zone after end",
			run: func(s *Shadow) *Violation {
				s.OnAlloc(base, 10)
				return s.OnAccess(base+10+DefaultRedZone-1, 1, false)
			},
			expect: OutOfBounds,
			code:   125,
		},
		{
			name: "read beyond red zone",
			run: func(s *Shadow) *Violation {
				s.OnAlloc(base, 10)
				return s.OnAccess(base+10+DefaultRedZone, 1, false)
			},
		},
		{
			name: "use after free",
			run: func(s *Shadow) *Violation {
				s.OnAlloc(base, 16)
				s.OnFree(base)
				return s.OnAccess(base+4, 4, false)
			},
			expect: UseAfterFree,
			code:   416,
		},
		{
			name: "reuse after free",
			run: func(s *Shadow) *Violation {
				s.OnAlloc(base, 16)
				s.OnFree(base)
				if v := s.OnAlloc(base, 8); v != nil {
					return v
				}
				return s.OnAccess(base, 8, true)
			},
		},
		{
			name: "overlapping allocation",
			run: func(s *Shadow) *Violation {
				s.OnAlloc(base, 16)
				return s.OnAlloc(base+8, 16)
			},
			expect: DoubleAllocation,
			code:   119,
		},
		{
			name: "free null",
			run: func(s *Shadow) *Violation {
				return s.OnFree(0)
			},
		},
		{
			name: "unmanaged access",
			run: func(s *Shadow) *Violation {
				s.OnAlloc(base, 16)
				return s.OnAccess(0x400000, 8, true)
			},
		},
		{
			name: "uninitialised read",
			run: func(s *Shadow) *Violation {
				s.OnAlloc(base, 16)
				return s.OnAccess(base, 16, false)
			},
		},
	}
	for _, tt := range tests {
		v := tt.run(NewShadow(DefaultRedZone))
		assert.Equal(t, tt.expect, kindOf(v), tt.name)
		if v != nil {
			assert.Equal(t, tt.code, cwe.Classify(v.Error()), "%s: %s", tt.name, v.Error())
		}
	}
}

func Test_ShadowInitBitmap(t *testing.T) {
	s := NewShadow(DefaultRedZone)
	require.Nil(t, s.OnAlloc(base, 100))
	assert.False(t, s.Initialized(base+70))

	require.Nil(t, s.OnAccess(base+64, 8, true))
	assert.True(t, s.Initialized(base+70))
	assert.False(t, s.Initialized(base+72))

	r, ok := s.Lookup(base + 99)
	require.True(t, ok)
	assert.Equal(t, Alloc, r.State)

	require.Nil(t, s.OnAllocZeroed(base+200, 4))
	assert.True(t, s.Initialized(base+203))
}

func Test_ShadowCloneIndependent(t *testing.T) {
	parent := NewShadow(DefaultRedZone)
	require.Nil(t, parent.OnAlloc(base, 16))

	child := parent.Clone()
	require.Nil(t, child.OnAccess(base, 4, true))
	require.Nil(t, child.OnFree(base))

	assert.False(t, parent.Initialized(base))
	assert.Nil(t, parent.OnAccess(base, 4, false))
	assert.Equal(t, UseAfterFree, kindOf(child.OnAccess(base, 4, false)))
}

func Test_ShadowLeaks(t *testing.T) {
	s := NewShadow(DefaultRedZone)
	s.OnAlloc(base+0x100, 8)
	s.OnAlloc(base, 32)
	s.OnAlloc(base+0x200, 4)
	s.OnFree(base + 0x200)

	leaks := s.Leaks()
	require.Len(t, leaks, 2)
	assert.Equal(t, uint64(base), leaks[0].Addr)
	assert.Equal(t, uint64(base+0x100), leaks[1].Addr)
	assert.Equal(t, "heap error: memory leak of 32 B at 0x10000", leaks[0].Error())
	assert.Equal(t, cwe.Code(401), cwe.Classify(leaks[0].Error()))
	assert.Equal(t, uint64(40), s.LiveBytes())
}
