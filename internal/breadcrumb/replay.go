package breadcrumb

import (
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// FrameSource yields frames in log order and io.EOF at the end.
type FrameSource interface {
	Next() (Frame, error)
}

// SyscallReplay is one recorded syscall with the memory ops to re-apply.
type SyscallReplay struct {
	Syscall
	// Ops is empty for thunk syscalls even when ops were recorded.
	Ops     []MemOp
	Skipped int
}

// Write is one memory update produced by re-applying a syscall op.
type Write struct {
	Addr uint64
	Size uint32
	Data []byte
}

// Writes resolves the ops of the syscall against its arguments.
func (r *SyscallReplay) Writes(args []uint64) ([]Write, error) {
	writes := make([]Write, 0, len(r.Ops))
	for i, op := range r.Ops {
		addr, err := op.Target(args)
		if err != nil {
			return nil, errors.Wrapf(err, "syscall %d op %d", r.Nr, i)
		}
		writes = append(writes, Write{Addr: addr, Size: op.Size, Data: op.Data})
	}
	return writes, nil
}

// Replayer consumes a log in FIFO order to drive a deterministic re-execution.
type Replayer struct {
	src      FrameSource
	peeked   *Frame
	consumed int
	syscalls int
	branches int
}

func NewReplayer(src FrameSource) *Replayer {
	return &Replayer{src: src}
}

func (rp *Replayer) next() (Frame, error) {
	if rp.peeked != nil {
		f := *rp.peeked
		rp.peeked = nil
		return f, nil
	}
	f, err := rp.src.Next()
	if err != nil {
		return Frame{}, err
	}
	rp.consumed++
	return f, nil
}

// nextKnown skips records this replayer has no use for.
func (rp *Replayer) nextKnown() (Frame, error) {
	for {
		f, err := rp.next()
		if err == io.EOF {
			return Frame{}, errors.Wrapf(ErrLogExhausted, "after %d frames", rp.consumed)
		} else if err != nil {
			return Frame{}, err
		}
		switch f.Type {
		case TypeSyscall, TypeRegs, TypeStackLog, TypeBranch:
			return f, nil
		}
		log.Debugf("replay: skipping %s", f)
	}
}

// NextSyscall consumes the next syscall record, which must be for nr, along with
// its trailing memory ops.
func (rp *Replayer) NextSyscall(nr uint32) (*SyscallReplay, error) {
	var f Frame
	for {
		var err error
		if f, err = rp.nextKnown(); err != nil {
			return nil, err
		}
		if f.Type == TypeSyscall {
			break
		}
		if f.Type == TypeBranch {
			rp.peeked = &f
			return nil, errors.Wrapf(ErrUnexpectedFrame, "want syscall %d, next record is a branch", nr)
		}
		log.Debugf("replay: dropping %s while waiting for syscall %d", f, nr)
	}
	sc, err := ParseSyscall(f)
	if err != nil {
		return nil, err
	}
	if sc.Nr != nr {
		return nil, errors.Wrapf(ErrSyscallMismatch, "log has %d, program issued %d (syscall #%d)", sc.Nr, nr, rp.syscalls)
	}
	rp.syscalls++

	result := &SyscallReplay{Syscall: sc}
	for i := uint32(0); i < sc.OpCount; i++ {
		of, err := rp.next()
		if err == io.EOF {
			return nil, errors.Wrapf(ErrCorruptRecord, "syscall %d: op %d of %d missing", nr, i, sc.OpCount)
		} else if err != nil {
			return nil, err
		}
		op, err := ParseMemOp(of)
		if err != nil {
			return nil, errors.Wrapf(err, "syscall %d op %d", nr, i)
		}
		if sc.Thunk {
			result.Skipped++
			continue
		}
		result.Ops = append(result.Ops, op)
	}
	return result, nil
}

// NextRegs consumes the next register dump. A syscall or branch record in the
// way is left in place and reported as ErrUnexpectedFrame.
func (rp *Replayer) NextRegs() (RegDump, error) {
	f, err := rp.nextKnown()
	if err != nil {
		return RegDump{}, err
	}
	if f.Type == TypeSyscall || f.Type == TypeBranch {
		rp.peeked = &f
		return RegDump{}, errors.Wrapf(ErrUnexpectedFrame, "want regs, next record is a %s", TypeName(f.Type))
	}
	return ParseRegs(f)
}

// NextBranch consumes the branch decision of a fork into count successors and
// returns the index the recorded path followed. Register dumps in the way are
// dropped; a syscall record is left in place.
func (rp *Replayer) NextBranch(count uint32) (uint32, error) {
	for {
		f, err := rp.nextKnown()
		if err != nil {
			return 0, err
		}
		switch f.Type {
		case TypeRegs, TypeStackLog:
			log.Debugf("replay: dropping %s while waiting for a branch", f)
			continue
		case TypeSyscall:
			rp.peeked = &f
			return 0, errors.Wrapf(ErrUnexpectedFrame, "want branch of %d, next record is a syscall", count)
		}
		b, err := ParseBranch(f)
		if err != nil {
			return 0, err
		}
		if b.Count != count {
			return 0, errors.Wrapf(ErrBranchMismatch, "log forked %d ways, program %d (branch #%d)", b.Count, count, rp.branches)
		}
		rp.branches++
		return b.Index, nil
	}
}

// Consumed counts frames pulled from the source.
func (rp *Replayer) Consumed() int {
	return rp.consumed
}

func (rp *Replayer) Syscalls() int {
	return rp.syscalls
}

func (rp *Replayer) Branches() int {
	return rp.branches
}
