package engine

import (
	"context"
	"fmt"

	"kcore/internal/breadcrumb"
	"kcore/internal/smt"
	"kcore/internal/state"
)

type OutcomeKind int

const (
	Normal OutcomeKind = iota
	Fault
	SyscallPending
	Exit
)

func (k OutcomeKind) String() string {
	switch k {
	case Normal:
		return "normal"
	case Fault:
		return "fault"
	case SyscallPending:
		return "syscall"
	case Exit:
		return "exit"
	}
	return fmt.Sprintf("outcome(%d)", int(k))
}

type EventKind int

const (
	EventAlloc EventKind = iota
	EventAllocZeroed
	EventFree
	EventAccess
)

// Event is an allocator or memory access observation made while stepping.
type Event struct {
	Kind  EventKind
	Addr  uint64
	Len   uint64
	Write bool
}

func Alloc(addr, n uint64) Event       { return Event{Kind: EventAlloc, Addr: addr, Len: n} }
func AllocZeroed(addr, n uint64) Event { return Event{Kind: EventAllocZeroed, Addr: addr, Len: n} }
func Free(addr uint64) Event           { return Event{Kind: EventFree, Addr: addr} }
func Read(addr, n uint64) Event        { return Event{Kind: EventAccess, Addr: addr, Len: n} }
func Write(addr, n uint64) Event       { return Event{Kind: EventAccess, Addr: addr, Len: n, Write: true} }

type SyscallRequest struct {
	XlateNr uint32
	Nr      uint32
	Args    []uint64
}

// Outcome is what one interpreter step did to a state.
type Outcome struct {
	Kind OutcomeKind
	// Events are checked against the heap shadow in order.
	Events []Event
	// Forks are states the interpreter split off during the step.
	Forks    []*state.State
	Message  string
	Syscall  SyscallRequest
	ExitCode int
}

// SyscallResult is handed back to the interpreter once a syscall is resolved.
// Memory effects have already been applied to the state.
type SyscallResult struct {
	Nr  uint32
	Ret uint64
	// Regs replaces the register file when non-nil.
	Regs []byte
}

// Interpreter executes guest instructions on a state.
type Interpreter interface {
	Step(ctx context.Context, st *state.State) (Outcome, error)
	CurrentAddress(st *state.State) (uint64, bool)
	// Arguments returns the first n integer call arguments.
	Arguments(st *state.State, n int) ([]uint64, error)
	// Return leaves the current function as if it returned v.
	Return(st *state.State, v smt.Value) error
	CompleteSyscall(st *state.State, res SyscallResult) error
}

// RegisterDumper is implemented by interpreters that can snapshot the register file.
type RegisterDumper interface {
	DumpRegisters(st *state.State) []byte
}

// SyscallEffect is what a syscall model decided for one call. Ops without
// data fill their target with fresh symbolic bytes.
type SyscallEffect struct {
	Ret   uint64
	Regs  []byte
	Thunk bool
	Ops   []breadcrumb.MemOp
}

// SyscallModel resolves syscalls when recording.
type SyscallModel interface {
	Syscall(ctx context.Context, st *state.State, req SyscallRequest) (SyscallEffect, error)
}

type SyscallModelFunc func(ctx context.Context, st *state.State, req SyscallRequest) (SyscallEffect, error)

func (f SyscallModelFunc) Syscall(ctx context.Context, st *state.State, req SyscallRequest) (SyscallEffect, error) {
	return f(ctx, st, req)
}
