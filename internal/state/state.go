// Package state holds the execution state of one path.
package state

import (
	"bytes"
	"fmt"
	"sync/atomic"

	"kcore/internal/breadcrumb"
	"kcore/internal/heap"
	"kcore/internal/smt"
)

type Status int

const (
	Live Status = iota
	Suspended
	Terminated
)

func (s Status) String() string {
	switch s {
	case Live:
		return "live"
	case Suspended:
		return "suspended"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Machine is the interpreter-owned part of a state, copied on fork.
type Machine interface {
	CloneMachine() Machine
}

// MemoEntry remembers which outcome a modelled call took on this path.
type MemoEntry struct {
	Func       string
	Case       int
	Ret        smt.Value
	Constraint smt.Bool
}

var lastID uint64

func nextID() uint64 {
	return atomic.AddUint64(&lastID, 1)
}

type State struct {
	ID       uint64
	ParentID uint64
	Depth    int
	PC       uint64
	// Steps counts instructions the interpreter executed on this path.
	Steps uint64

	Stack       *CallStack
	Memory      *Memory
	Constraints *Constraint
	Crumbs      *breadcrumb.Log
	Heap        *heap.Shadow
	Machine     Machine

	Status Status
	Reason string

	memo map[uint64]MemoEntry
}

func NewState(pc uint64, stackLimit int, redZone uint64) *State {
	return &State{
		ID:          nextID(),
		PC:          pc,
		Stack:       NewCallStack(stackLimit),
		Memory:      NewMemory(),
		Constraints: NewConstraints(),
		Crumbs:      breadcrumb.NewLog(),
		Heap:        heap.NewShadow(redZone),
		memo:        make(map[uint64]MemoEntry),
	}
}

// Fork returns an independent copy of s under a fresh id.
func (s *State) Fork() *State {
	child := &State{
		ID:          nextID(),
		ParentID:    s.ID,
		Depth:       s.Depth + 1,
		PC:          s.PC,
		Steps:       s.Steps,
		Stack:       s.Stack.Clone(),
		Memory:      s.Memory.Clone(),
		Constraints: s.Constraints.Clone(),
		Crumbs:      s.Crumbs.Clone(),
		Heap:        s.Heap.Clone(),
		Status:      Live,
		memo:        make(map[uint64]MemoEntry, len(s.memo)),
	}
	if s.Machine != nil {
		child.Machine = s.Machine.CloneMachine()
	}
	for k, v := range s.memo {
		child.memo[k] = v
	}
	return child
}

func (s *State) Memo(key uint64) (MemoEntry, bool) {
	e, ok := s.memo[key]
	return e, ok
}

func (s *State) Remember(key uint64, e MemoEntry) {
	s.memo[key] = e
}

func (s *State) String() string {
	return fmt.Sprintf("state#%d@%#x", s.ID, s.PC)
}

// Dump renders the state for debugging.
func (s *State) Dump() string {
	var buf bytes.Buffer

	fmt.Fprintln(&buf, "EXECUTION STATE")
	fmt.Fprintln(&buf, "===============")
	fmt.Fprintf(&buf, "id=%d parent=%d depth=%d pc=%#x\n", s.ID, s.ParentID, s.Depth, s.PC)
	fmt.Fprintf(&buf, "status=%s\n", s.Status)
	fmt.Fprintf(&buf, "reason=%s\n", s.Reason)
	fmt.Fprintf(&buf, "stack depth=%d crumbs=%d\n", s.Stack.Depth(), s.Crumbs.Len())
	fmt.Fprintln(&buf, "")

	fmt.Fprintln(&buf, "== HEAP")
	for _, r := range s.Heap.Regions() {
		fmt.Fprintln(&buf, r)
	}
	fmt.Fprintln(&buf, "")

	fmt.Fprintln(&buf, "== CONSTRAINTS")
	for i, c := range s.Constraints.GetConstraints() {
		fmt.Fprintf(&buf, "%d. %s\n", i, c)
	}
	return buf.String()
}
