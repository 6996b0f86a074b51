package engine

import (
	"context"
	"sync"

	"kcore/internal/crosscheck"
	"kcore/internal/heap"
	"kcore/internal/smt"
	"kcore/internal/state"

	"github.com/pkg/errors"
)

type regs struct {
	rax  uint64
	args []uint64
}

func (r *regs) CloneMachine() state.Machine {
	c := *r
	c.args = append([]uint64{}, r.args...)
	return &c
}

// insn is one instruction of a fake program.
type insn struct {
	kind    OutcomeKind
	events  []Event
	next    uint64
	call    uint64
	args    []uint64
	syscall SyscallRequest
	msg     string
	exit    int
	// native returns 77 from the current function.
	native bool
}

// fakeInterp runs a program of insn keyed by address.
type fakeInterp struct {
	prog map[uint64]insn
	// skew is added to every syscall return value.
	skew uint64

	mu   sync.Mutex
	rets []int64
}

func newRoot(pc uint64) *state.State {
	st := state.NewState(pc, 64, heap.DefaultRedZone)
	st.Machine = &regs{}
	return st
}

func machine(st *state.State) *regs {
	return st.Machine.(*regs)
}

func (f *fakeInterp) Step(_ context.Context, st *state.State) (Outcome, error) {
	in, ok := f.prog[st.PC]
	if !ok {
		return Outcome{}, errors.Errorf("no instruction at %#x", st.PC)
	}
	if in.args != nil {
		machine(st).args = in.args
	}
	switch {
	case in.native:
		if err := f.Return(st, smt.Int(77)); err != nil {
			return Outcome{}, err
		}
	case in.call != 0:
		if err := st.Stack.Push(state.Frame{Func: in.call, Return: in.next}); err != nil {
			return Outcome{Kind: Fault, Message: "call stack overflow"}, nil
		}
		st.PC = in.call
	default:
		st.PC = in.next
	}
	return Outcome{
		Kind:     in.kind,
		Events:   in.events,
		Message:  in.msg,
		Syscall:  in.syscall,
		ExitCode: in.exit,
	}, nil
}

func (f *fakeInterp) CurrentAddress(st *state.State) (uint64, bool) {
	return st.PC, true
}

func (f *fakeInterp) Arguments(st *state.State, n int) ([]uint64, error) {
	args := machine(st).args
	if len(args) > n {
		args = args[:n]
	}
	return args, nil
}

func (f *fakeInterp) Return(st *state.State, v smt.Value) error {
	ret, ok := v.Concretize(nil)
	if !ok {
		return errors.Errorf("symbolic return %s", v)
	}
	machine(st).rax = uint64(ret)
	frame, err := st.Stack.Pop()
	if err != nil {
		return err
	}
	st.PC = frame.Return

	f.mu.Lock()
	f.rets = append(f.rets, ret)
	f.mu.Unlock()
	return nil
}

func (f *fakeInterp) CompleteSyscall(st *state.State, res SyscallResult) error {
	machine(st).rax = res.Ret + f.skew
	return nil
}

func (f *fakeInterp) DumpRegisters(st *state.State) []byte {
	dump := make([]byte, crosscheck.AMD64.Size())
	crosscheck.AMD64.Put(dump, "rax", machine(st).rax)
	crosscheck.AMD64.Put(dump, "rip", st.PC)
	return dump
}

func (f *fakeInterp) returned() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64{}, f.rets...)
}
