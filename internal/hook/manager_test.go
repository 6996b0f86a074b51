package hook

import (
	"context"
	"encoding/binary"
	"testing"

	"kcore/internal/smt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Bind(t *testing.T) {
	m := NewManager(smt.NewDomainSolver(0), DefaultScanLimit)
	assert.True(t, m.Bind(0x100, "__strlen_avx2"))
	assert.False(t, m.Bind(0x200, "printf"))
	assert.Equal(t, 2, m.BindSymbols(map[string]uint64{"strcmp": 0x300, "index": 0x400, "puts": 0x500}))

	name, ok := m.Lookup(0x100)
	require.True(t, ok)
	assert.Equal(t, "strlen", name)
	name, _ = m.Lookup(0x400)
	assert.Equal(t, "strchr", name)
	_, ok = m.Lookup(0x500)
	assert.False(t, ok)
	assert.Len(t, m.Models(), 8)
}

func Test_SplitFallThrough(t *testing.T) {
	ctx := context.Background()
	m := NewManager(smt.NewDomainSolver(0), DefaultScanLimit)
	st := newTestState()
	st.Memory.StoreBytes(0x1000, smt.NewStringVal("abc"))
	st.Memory.StoreBytes(0x2000, smt.NewStringVal("abd"))

	res, err := m.Split(ctx, st, "strcmp", []uint64{0x1000, 0x2000})
	require.NoError(t, err)
	assert.True(t, res.FallThrough)

	res, err = m.Split(ctx, st, "qsort", nil)
	require.NoError(t, err)
	assert.True(t, res.FallThrough)
}

func Test_SplitRefinesOnRepeat(t *testing.T) {
	ctx := context.Background()
	m := NewManager(smt.NewDomainSolver(0), DefaultScanLimit)
	st := newTestState()
	putSymbolic(st, 0x1000, "s", 4, true)
	st.Memory.StoreBytes(0x2000, smt.NewStringVal("key"))
	args := []uint64{0x1000, 0x2000}

	res, err := m.Split(ctx, st, "strcmp", args)
	require.NoError(t, err)
	require.Len(t, res.Successors, 3)
	assert.Same(t, st, res.Successors[0].State)

	rets := map[int64]bool{}
	total := 0
	for _, succ := range res.Successors {
		again, err := m.Split(ctx, succ.State, "__GI_strcmp", args)
		require.NoError(t, err)
		require.Len(t, again.Successors, 1)
		assert.True(t, again.Memoized)
		assert.Equal(t, succ.Case.Label, again.Successors[0].Case.Label)
		v, _ := again.Successors[0].Case.Ret.Concretize(nil)
		rets[v] = true
		total += len(again.Successors)
	}
	assert.Equal(t, 3, total)
	assert.Equal(t, map[int64]bool{-1: true, 0: true, 1: true}, rets)
}

func Test_SplitPrunesOnPrefix(t *testing.T) {
	ctx := context.Background()
	solver := smt.NewDomainSolver(0)
	m := NewManager(solver, DefaultScanLimit)
	st := newTestState()
	s := putSymbolic(st, 0x1000, "s", 4, true)
	st.Memory.StoreBytes(0x2000, smt.NewStringVal("-help"))
	st.Constraints.AppendBool(smt.Eq(s[0], smt.NewByteVal('x')))

	res, err := m.Split(ctx, st, "strcmp", []uint64{0x1000, 0x2000})
	require.NoError(t, err)
	require.Len(t, res.Successors, 1)
	assert.Equal(t, "gt", res.Successors[0].Case.Label)
	assert.Equal(t, 1, res.Pruned)
	assert.Equal(t, 0, res.SolverCalls)
	assert.Equal(t, int64(0), solver.Queries())
}

type optionPair struct{ help, h int64 }

// optionChecks splits two option checks, against "-help" and then "-h", on one
// 32 byte symbolic argument and returns the result pairs of every leaf.
func optionChecks(t *testing.T, solver smt.Solver) (map[optionPair]bool, int) {
	ctx := context.Background()
	m := NewManager(solver, DefaultScanLimit)
	root := newTestState()
	s := putSymbolic(root, 0x1000, "argv1", 32, false)
	root.Memory.StoreBytes(0x2000, smt.NewStringVal("-help"))
	root.Memory.StoreBytes(0x3000, smt.NewStringVal("-h"))

	first, err := m.Split(ctx, root, "strcmp", []uint64{0x1000, 0x2000})
	require.NoError(t, err)
	require.Len(t, first.Successors, 3)

	var (
		pairs   = map[optionPair]bool{}
		leaves  = 0
		witness = smt.NewDomainSolver(0)
	)
	for _, a := range first.Successors {
		second, err := m.Split(ctx, a.State, "strcmp", []uint64{0x1000, 0x3000})
		require.NoError(t, err)
		for _, b := range second.Successors {
			require.False(t, b.Case.Emulate, b.Case.Label)
			leaves++
			help, _ := a.Case.Ret.Concretize(nil)
			h, _ := b.Case.Ret.Concretize(nil)
			p := optionPair{help, h}
			pairs[p] = true

			// a witness of the leaf must really compare that way
			model, ok, err := witness.Solve(ctx, b.State.Constraints.GetConstraints())
			require.NoError(t, err)
			require.True(t, ok)
			arg := concrete(s, model)
			assert.Equal(t, help, refStrncmp(arg, []byte("-help\x00\x00"), 7), "%v %q", p, arg)
			assert.Equal(t, h, refStrncmp(arg, []byte("-h\x00\x00\x00\x00\x00"), 7), "%v %q", p, arg)
		}
	}
	return pairs, leaves
}

var optionPairs = map[optionPair]bool{
	{0, 1}:   true,
	{-1, 0}:  true,
	{-1, -1}: true,
	{1, 1}:   true,
	{-1, 1}:  true,
}

func Test_SplitOptionChecks(t *testing.T) {
	pairs, leaves := optionChecks(t, smt.NewDomainSolver(0))
	assert.LessOrEqual(t, leaves, 9)
	assert.False(t, pairs[optionPair{0, 0}])
	assert.Equal(t, optionPairs, pairs)
}

func Test_SplitAppliesStores(t *testing.T) {
	ctx := context.Background()
	m := NewManager(smt.NewDomainSolver(0), DefaultScanLimit)
	st := newTestState()
	putSymbolic(st, 0x1000, "num", 2, true)

	res, err := m.Split(ctx, st, "strtol", []uint64{0x1000, 0x3000, 10})
	require.NoError(t, err)
	require.NotEmpty(t, res.Successors)
	for _, succ := range res.Successors {
		if succ.Case.Emulate {
			continue
		}
		require.Len(t, succ.Case.Stores, 1)
		var raw []byte
		for _, b := range succ.State.Memory.LoadBytes(0x3000, 8) {
			raw = append(raw, b.Value())
		}
		end := binary.LittleEndian.Uint64(raw)
		assert.Equal(t, binary.LittleEndian.Uint64(succ.Case.Stores[0].Data), end, succ.Case.Label)
		assert.True(t, end >= 0x1000 && end <= 0x1002, succ.Case.Label)
	}
}
