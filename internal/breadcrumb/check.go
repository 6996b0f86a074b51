package breadcrumb

import (
	"io"

	"github.com/pkg/errors"
)

// Report summarises a log that passed Check.
type Report struct {
	Frames   int
	Syscalls int
	Ops      int
	Thunked  int
	Regs     int
	MemLogs  int
	Branches int
	Unknown  int
	Types    map[uint32]int
	Payload  uint64
}

// Check walks a whole log the way a replay would, validating every record and
// the op count of every syscall.
func Check(r *Reader) (*Report, error) {
	rep := &Report{Types: make(map[uint32]int)}
	rp := NewReplayer(r)
	for {
		f, err := r.Peek()
		if err == io.EOF {
			rep.Frames = r.Processed()
			return rep, nil
		} else if err != nil {
			return rep, errors.Wrapf(err, "frame %d", r.Processed())
		}

		switch f.Type {
		case TypeSyscall:
			sc, err := ParseSyscall(f)
			if err != nil {
				return rep, errors.Wrapf(err, "frame %d", r.Processed())
			}
			replay, err := rp.NextSyscall(sc.Nr)
			if err != nil {
				return rep, errors.Wrapf(err, "frame %d", r.Processed())
			}
			rep.Syscalls++
			rep.Ops += len(replay.Ops)
			rep.Thunked += replay.Skipped
			rep.Types[TypeSyscall]++
			rep.Types[TypeSyscallOp] += int(sc.OpCount)
			rep.Payload += uint64(f.Size())
			for _, op := range replay.Ops {
				rep.Payload += memOpFixedSize + uint64(len(op.Data))
			}
			continue
		case TypeSyscallOp:
			return rep, errors.Wrapf(ErrCorruptRecord, "frame %d: sc-op outside a syscall", r.Processed())
		case TypeRegs, TypeStackLog:
			if _, err := rp.NextRegs(); err != nil {
				return rep, errors.Wrapf(err, "frame %d", r.Processed())
			}
			rep.Regs++
		case TypeBranch:
			b, err := ParseBranch(f)
			if err != nil {
				return rep, errors.Wrapf(err, "frame %d", r.Processed())
			}
			if _, err := rp.NextBranch(b.Count); err != nil {
				return rep, errors.Wrapf(err, "frame %d", r.Processed())
			}
			rep.Branches++
		case TypeMemLog:
			r.Next()
			if _, err := ParseMemLog(f); err != nil {
				return rep, errors.Wrapf(err, "frame %d", r.Processed())
			}
			rep.MemLogs++
		default:
			r.Next()
			rep.Unknown++
		}
		rep.Types[f.Type]++
		rep.Payload += uint64(f.Size())
	}
}
