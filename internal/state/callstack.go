package state

import (
	"github.com/pkg/errors"
)

var (
	ErrStackOverflow  = errors.New("call stack overflow")
	ErrStackUnderflow = errors.New("call stack underflow")
)

const DefaultStackDepth = 1024

// Frame is one shadowed call: where it was entered and where it returns to.
type Frame struct {
	Func   uint64
	Return uint64
}

// CallStack is a fixed-capacity call-depth shadow.
type CallStack struct {
	frames []Frame
	limit  int
}

func NewCallStack(limit int) *CallStack {
	return &CallStack{
		frames: make([]Frame, 0, 16),
		limit:  limit,
	}
}

func (cs *CallStack) Push(f Frame) error {
	if len(cs.frames) >= cs.limit {
		return errors.Wrapf(ErrStackOverflow, "depth %d", len(cs.frames))
	}
	cs.frames = append(cs.frames, f)
	return nil
}

func (cs *CallStack) Pop() (Frame, error) {
	if len(cs.frames) == 0 {
		return Frame{}, ErrStackUnderflow
	}
	f := cs.frames[len(cs.frames)-1]
	cs.frames = cs.frames[:len(cs.frames)-1]
	return f, nil
}

func (cs *CallStack) Top() (Frame, error) {
	if len(cs.frames) == 0 {
		return Frame{}, ErrStackUnderflow
	}
	return cs.frames[len(cs.frames)-1], nil
}

func (cs *CallStack) Depth() int {
	return len(cs.frames)
}

func (cs *CallStack) Clone() *CallStack {
	result := &CallStack{
		frames: make([]Frame, len(cs.frames), cap(cs.frames)),
		limit:  cs.limit,
	}
	copy(result.frames, cs.frames)
	return result
}
