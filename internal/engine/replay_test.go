package engine

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"kcore/internal/breadcrumb"
	"kcore/internal/hook"
	"kcore/internal/smt"
	"kcore/internal/state"
	"kcore/internal/strategy"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFrames(t *testing.T, path string) []breadcrumb.Frame {
	r, err := breadcrumb.Open(path)
	require.NoError(t, err)
	defer r.Close()
	var frames []breadcrumb.Frame
	for {
		f, err := r.Next()
		if err == io.EOF {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, f)
	}
}

// splitProgram reads two bytes of input, compares them against "ab", asks for
// its pid and exits.
func splitProgram() map[uint64]insn {
	return map[uint64]insn{
		0x1000: {kind: SyscallPending, syscall: SyscallRequest{Nr: 0, Args: []uint64{0, 0x2000, 2}}, next: 0x1004},
		0x1004: {call: 0x500, args: []uint64{0x2000, 0x3000}, next: 0x1008},
		0x1008: {kind: SyscallPending, syscall: SyscallRequest{Nr: 39}, next: 0x100c},
		0x100c: {kind: Exit},
		0x500:  {native: true},
	}
}

var inputModel = SyscallModelFunc(func(_ context.Context, _ *state.State, req SyscallRequest) (SyscallEffect, error) {
	switch req.Nr {
	case 0:
		return SyscallEffect{Ret: 2, Ops: []breadcrumb.MemOp{{Base: breadcrumb.ArgPtr(1), Size: 2}}}, nil
	case 39:
		return SyscallEffect{Ret: 1234}, nil
	}
	return SyscallEffect{}, errors.Errorf("syscall %d", req.Nr)
})

func splitRoot() *state.State {
	root := newRoot(0x1000)
	root.Memory.Store(0x2002, smt.NewByteVal(0))
	root.Memory.StoreBytes(0x3000, smt.NewStringVal("ab"))
	return root
}

func strcmpHooks(t *testing.T) *hook.Manager {
	hooks := hook.NewManager(smt.NewDomainSolver(0), hook.DefaultScanLimit)
	require.True(t, hooks.Bind(0x500, "strcmp"))
	return hooks
}

func Test_ReplayEveryRecordedPath(t *testing.T) {
	dir := t.TempDir()
	fi := &fakeInterp{prog: splitProgram()}
	d := NewDriver(fi, strategy.NewPriorityScheduler(strategy.Uniform{}), Options{
		Hooks:          strcmpHooks(t),
		Syscalls:       inputModel,
		OutputDir:      dir,
		RegLogInterval: 1,
	})
	require.NoError(t, d.Run(context.Background(), splitRoot()))
	require.Equal(t, 3, d.Stats().Completed)
	assert.Equal(t, []int64{-1, 0, 1}, sorted(fi.returned()))

	var rets []int64
	for i := 1; i <= 3; i++ {
		recorded := filepath.Join(dir, breadcrumb.FileName(i))
		r, err := breadcrumb.Open(recorded)
		require.NoError(t, err)
		rp := breadcrumb.NewReplayer(r)

		out := t.TempDir()
		fi := &fakeInterp{prog: splitProgram()}
		d := NewDriver(fi, strategy.NewPriorityScheduler(strategy.Uniform{}), Options{
			Hooks:          strcmpHooks(t),
			Replay:         rp,
			OutputDir:      out,
			RegLogInterval: 1,
		})
		require.NoError(t, d.Run(context.Background(), splitRoot()), recorded)
		require.NoError(t, r.Close())

		assert.Equal(t, 1, d.Stats().Completed, recorded)
		assert.Equal(t, 2, d.Stats().Pruned, recorded)
		assert.Equal(t, 2, rp.Syscalls(), recorded)
		assert.Equal(t, 1, rp.Branches(), recorded)
		require.Len(t, fi.returned(), 1)
		rets = append(rets, fi.returned()[0])

		replayed := readFrames(t, filepath.Join(out, breadcrumb.FileName(1)))
		if diff := cmp.Diff(readFrames(t, recorded), replayed); diff != "" {
			t.Errorf("%s: replayed log differs (-recorded +replayed):\n%s", recorded, diff)
		}
	}
	assert.Equal(t, []int64{-1, 0, 1}, sorted(rets))
}

// forkProgram forks at 0x1004; the parent exits with 0 and the fork with 1,
// both after asking for their pid.
func forkProgram() map[uint64]insn {
	return map[uint64]insn{
		0x1000: {next: 0x1004},
		0x1004: {next: 0x1008},
		0x1008: {kind: SyscallPending, syscall: SyscallRequest{Nr: 39}, next: 0x100c},
		0x100c: {kind: Exit},
		0x2000: {kind: SyscallPending, syscall: SyscallRequest{Nr: 39}, next: 0x2004},
		0x2004: {kind: Exit, exit: 1},
	}
}

func newForkingInterp(forked **state.State) *forkingInterp {
	return &forkingInterp{fakeInterp: &fakeInterp{prog: forkProgram()}, at: 0x1004, fork: func(st *state.State) *state.State {
		*forked = st.Fork()
		(*forked).PC = 0x2000
		return *forked
	}}
}

func Test_ReplayFollowsInterpreterFork(t *testing.T) {
	dir := t.TempDir()
	var forked *state.State
	d := NewDriver(newForkingInterp(&forked), strategy.NewDFS(), Options{Syscalls: ioModel, OutputDir: dir})
	require.NoError(t, d.Run(context.Background(), newRoot(0x1000)))
	require.Equal(t, 2, d.Stats().Completed)

	exits := map[string]bool{}
	for i := 1; i <= 2; i++ {
		r, err := breadcrumb.Open(filepath.Join(dir, breadcrumb.FileName(i)))
		require.NoError(t, err)

		var forked *state.State
		root := newRoot(0x1000)
		d := NewDriver(newForkingInterp(&forked), strategy.NewDFS(), Options{Replay: breadcrumb.NewReplayer(r)})
		require.NoError(t, d.Run(context.Background(), root))
		require.NoError(t, r.Close())
		require.NotNil(t, forked)

		assert.Equal(t, 1, d.Stats().Completed)
		assert.Equal(t, 1, d.Stats().Pruned)
		survivor := root
		if root.Reason == "branch not taken by replayed path" {
			survivor = forked
		} else {
			assert.Equal(t, "branch not taken by replayed path", forked.Reason)
		}
		assert.Equal(t, uint64(1234), machine(survivor).rax)
		exits[survivor.Reason] = true
	}
	assert.Equal(t, map[string]bool{"exit(0)": true, "exit(1)": true}, exits)
}

func Test_ReplayBranchDivergence(t *testing.T) {
	dir := t.TempDir()
	d := NewDriver(&fakeInterp{prog: splitProgram()}, strategy.NewDFS(), Options{
		Hooks:     strcmpHooks(t),
		Syscalls:  inputModel,
		OutputDir: dir,
	})
	require.NoError(t, d.Run(context.Background(), splitRoot()))

	// without the hook the program never forks where the log did
	r, err := breadcrumb.Open(filepath.Join(dir, breadcrumb.FileName(1)))
	require.NoError(t, err)
	defer r.Close()
	d = NewDriver(&fakeInterp{prog: splitProgram()}, strategy.NewDFS(), Options{Replay: breadcrumb.NewReplayer(r)})
	assert.ErrorIs(t, d.Run(context.Background(), splitRoot()), breadcrumb.ErrUnexpectedFrame)
}

func Test_ReplayOneRoot(t *testing.T) {
	d := NewDriver(&fakeInterp{prog: ioProgram()}, strategy.NewDFS(), Options{Replay: breadcrumb.NewReplayer(breadcrumb.NewLog().Cursor())})
	assert.Error(t, d.Run(context.Background(), newRoot(0x1000), newRoot(0x1000)))
}

// flakyInterp fails Arguments for one state and Return for one value.
type flakyInterp struct {
	*fakeInterp
	argsFail uint64
	retFail  int64
}

func (f *flakyInterp) Arguments(st *state.State, n int) ([]uint64, error) {
	if st.ID == f.argsFail {
		return nil, errors.New("cannot read args")
	}
	return f.fakeInterp.Arguments(st, n)
}

func (f *flakyInterp) Return(st *state.State, v smt.Value) error {
	if ret, ok := v.Concretize(nil); ok && ret == f.retFail {
		return errors.Errorf("cannot return %d", ret)
	}
	return f.fakeInterp.Return(st, v)
}

func Test_HookInterpreterErrorsDropState(t *testing.T) {
	bad, good := splitRoot(), splitRoot()
	bad.Memory.StoreBytes(0x2000, smt.NewBytes("x", 2))
	good.Memory.StoreBytes(0x2000, smt.NewBytes("y", 2))
	prog := hookProgram([]uint64{0x2000, 0x3000})

	fi := &flakyInterp{fakeInterp: &fakeInterp{prog: prog}, argsFail: bad.ID, retFail: 0}
	d := NewDriver(fi, strategy.NewPriorityScheduler(strategy.Uniform{}), Options{Hooks: strcmpHooks(t)})
	require.NoError(t, d.Run(context.Background(), bad, good))

	assert.Equal(t, state.Terminated, bad.Status)
	assert.Contains(t, bad.Reason, "cannot read args")
	// the equal case cannot return; the other two complete
	assert.Equal(t, []int64{-1, 1}, sorted(fi.returned()))
	assert.Equal(t, 2, d.Stats().Completed)
	assert.Equal(t, 2, d.Stats().Dropped)
}
