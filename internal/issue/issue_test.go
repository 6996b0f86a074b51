package issue

import (
	"path/filepath"
	"testing"

	"kcore/internal/cwe"
	"kcore/internal/heap"
	"kcore/internal/state"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_New(t *testing.T) {
	st := state.NewState(0x401234, 8, heap.DefaultRedZone)
	tests := []struct {
		msg   string
		code  cwe.Code
		title string
	}{
		{"heap error: double free of 0x10000", 415, "Double Free"},
		{"heap error: out of bounds write of 1 bytes at 0x10020 near buffer [0x10000, 0x10020) alloc", 787, "Out-of-bounds Write"},
		{"illegal instruction", cwe.Unclassified, ""},
	}
	for _, tt := range tests {
		is := New(st, tt.msg)
		assert.Equal(t, tt.code, is.Code, tt.msg)
		assert.Equal(t, tt.title, is.Title, tt.msg)
		assert.Equal(t, tt.code.String(), is.CWE)
		assert.Equal(t, st.ID, is.StateID)
		assert.Equal(t, uint64(0x401234), is.PC)
	}
}

func Test_String(t *testing.T) {
	color.NoColor = true
	st := state.NewState(0x401000, 8, heap.DefaultRedZone)
	is := New(st, "heap error: double free of 0x10000")
	is.Crumbs = "/tmp/path000001.crumbs"

	s := is.String()
	assert.Contains(t, s, "CWE-415: Double Free")
	assert.Contains(t, s, "at 0x401000")
	assert.Contains(t, s, "replay log: /tmp/path000001.crumbs")

	assert.Contains(t, New(st, "bad opcode").String(), "unclassified: Unclassified error")
}

func Test_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	st := state.NewState(0x401000, 8, heap.DefaultRedZone)
	is := New(st, "heap error: use after free, read of 4 bytes at 0x10008 in freed buffer 0x10000")

	path, err := is.Save(dir, 7)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "path000007.report.json"), path)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, is, loaded)
	assert.Equal(t, cwe.Code(416), loaded.Code)
}
