package state

import (
	"testing"

	"kcore/internal/breadcrumb"
	"kcore/internal/heap"
	"kcore/internal/smt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type regs struct {
	rax uint64
}

func (r *regs) CloneMachine() Machine {
	c := *r
	return &c
}

func Test_ForkIndependent(t *testing.T) {
	parent := NewState(0x401000, 4, heap.DefaultRedZone)
	parent.Machine = &regs{rax: 1}
	parent.Memory.WriteConcrete(0x1000, []byte("hi"))
	parent.Constraints.AppendBool(smt.Ne(smt.NewByte("in", 0), smt.NewByteVal(0)))
	require.NoError(t, parent.Stack.Push(Frame{Func: 0x401000, Return: 0}))
	require.Nil(t, parent.Heap.OnAlloc(0x20000, 8))
	parent.Remember(7, MemoEntry{Func: "strlen", Case: 1})

	child := parent.Fork()
	assert.NotEqual(t, parent.ID, child.ID)
	assert.Equal(t, parent.ID, child.ParentID)
	assert.Equal(t, 1, child.Depth)

	child.Machine.(*regs).rax = 2
	child.Memory.WriteConcrete(0x1000, []byte("yo"))
	child.Constraints.AppendBool(smt.Eq(smt.NewByte("in", 1), smt.NewByteVal('x')))
	_, err := child.Stack.Pop()
	require.NoError(t, err)
	require.Nil(t, child.Heap.OnFree(0x20000))
	child.Crumbs.Append(breadcrumb.Syscall{Nr: 1}.Frame())
	child.Remember(8, MemoEntry{Func: "strcmp"})

	assert.Equal(t, uint64(1), parent.Machine.(*regs).rax)
	assert.Equal(t, uint8('h'), parent.Memory.Load(0x1000).Value())
	assert.Equal(t, 1, parent.Constraints.Len())
	assert.Equal(t, 1, parent.Stack.Depth())
	assert.Nil(t, parent.Heap.OnAccess(0x20000, 8, false))
	assert.Equal(t, 0, parent.Crumbs.Len())
	_, ok := parent.Memo(8)
	assert.False(t, ok)
	e, ok := child.Memo(7)
	assert.True(t, ok)
	assert.Equal(t, "strlen", e.Func)
}

func Test_CallStackBound(t *testing.T) {
	cs := NewCallStack(2)
	require.NoError(t, cs.Push(Frame{Func: 1}))
	require.NoError(t, cs.Push(Frame{Func: 2}))
	assert.ErrorIs(t, cs.Push(Frame{Func: 3}), ErrStackOverflow)

	top, err := cs.Top()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), top.Func)

	cs.Pop()
	cs.Pop()
	_, err = cs.Pop()
	assert.ErrorIs(t, err, ErrStackUnderflow)
}

func Test_Constraints(t *testing.T) {
	x := smt.NewByte("in", 0)
	c := NewConstraints(smt.Ugt(x, smt.NewByteVal(5)))
	c.AppendBool(smt.True())
	assert.Equal(t, 1, c.Len())

	clone := c.Clone()
	c.AppendBool(smt.Ult(x, smt.NewByteVal(3)))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 1, clone.Len())
	assert.Len(t, c.With(smt.Eq(x, x)), 3)
	assert.Equal(t, 2, c.Len())
}
