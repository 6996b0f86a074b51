package breadcrumb

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	syscallFixedSize = 20
	memOpFixedSize   = 16
	// MaxSyscallOps bounds the memory ops one syscall may carry.
	MaxSyscallOps = 8
)

// Syscall is the typed view of a TypeSyscall record.
type Syscall struct {
	XlateNr uint32
	Nr      uint32
	Ret     uint64
	OpCount uint32
	// Regs replaces the whole register file when non-nil.
	Regs []byte
	// Thunk marks syscalls whose memory ops are not applied on replay.
	Thunk bool
}

func (sc Syscall) Frame() Frame {
	size := syscallFixedSize
	var flags uint32
	if sc.Regs != nil {
		flags |= FlagNewRegs
		size += 4 + len(sc.Regs)
	}
	if sc.Thunk {
		flags |= FlagThunk
	}
	payload := make([]byte, size)
	le.PutUint32(payload[0:], sc.XlateNr)
	le.PutUint32(payload[4:], sc.Nr)
	le.PutUint64(payload[8:], sc.Ret)
	le.PutUint32(payload[16:], sc.OpCount)
	if sc.Regs != nil {
		le.PutUint32(payload[20:], uint32(len(sc.Regs)))
		copy(payload[24:], sc.Regs)
	}
	return Frame{Type: TypeSyscall, Flags: flags, Payload: payload}
}

func ParseSyscall(f Frame) (Syscall, error) {
	if f.Type != TypeSyscall {
		return Syscall{}, errors.Wrapf(ErrUnexpectedFrame, "want syscall, got %s", TypeName(f.Type))
	}
	p := f.Payload
	if len(p) < syscallFixedSize {
		return Syscall{}, errors.Wrapf(ErrCorruptRecord, "syscall payload %d bytes", len(p))
	}
	sc := Syscall{
		XlateNr: le.Uint32(p[0:]),
		Nr:      le.Uint32(p[4:]),
		Ret:     le.Uint64(p[8:]),
		OpCount: le.Uint32(p[16:]),
		Thunk:   f.Flags&FlagThunk != 0,
	}
	rest := p[syscallFixedSize:]
	if f.Flags&FlagNewRegs != 0 {
		if len(rest) < 4 {
			return Syscall{}, errors.Wrap(ErrCorruptRecord, "syscall new regs: missing length")
		}
		n := le.Uint32(rest)
		if uint64(n) != uint64(len(rest)-4) {
			return Syscall{}, errors.Wrapf(ErrCorruptRecord, "syscall new regs: length %d, have %d", n, len(rest)-4)
		}
		sc.Regs = append([]byte{}, rest[4:]...)
	} else if len(rest) != 0 {
		return Syscall{}, errors.Wrapf(ErrCorruptRecord, "syscall: %d trailing bytes", len(rest))
	}
	return sc, nil
}

// MemOpBase locates the memory a syscall op wrote: a user pointer or a syscall argument.
type MemOpBase interface {
	fmt.Stringer
	flag() uint32
	raw() uint64
}

type UserPtr uint64

type ArgPtr int

func (p UserPtr) flag() uint32   { return FlagOpUserPtr }
func (p UserPtr) raw() uint64    { return uint64(p) }
func (p UserPtr) String() string { return fmt.Sprintf("ptr:%#x", uint64(p)) }

func (a ArgPtr) flag() uint32   { return FlagOpArgPtr }
func (a ArgPtr) raw() uint64    { return uint64(a) }
func (a ArgPtr) String() string { return fmt.Sprintf("arg%d", int(a)) }

// MemOp is the typed view of a TypeSyscallOp record.
type MemOp struct {
	Base   MemOpBase
	Offset uint32
	Size   uint32
	// Data holds the written bytes when recorded; nil means only the extent is known.
	// A zero Size with Data set takes the length of Data.
	Data []byte
}

func (op MemOp) size() uint32 {
	if op.Size == 0 && op.Data != nil {
		return uint32(len(op.Data))
	}
	return op.Size
}

// check rejects ops whose Size disagrees with their Data.
func (op MemOp) check() error {
	if op.Base == nil {
		return errors.Wrap(ErrBadOp, "no base")
	}
	if op.Data != nil && uint64(op.size()) != uint64(len(op.Data)) {
		return errors.Wrapf(ErrBadOp, "size %d, data %d bytes", op.Size, len(op.Data))
	}
	return nil
}

// Frame encodes op. An op failing check encodes a record ParseMemOp rejects.
func (op MemOp) Frame() Frame {
	flags := op.Base.flag()
	size := op.size()
	payload := make([]byte, memOpFixedSize, memOpFixedSize+len(op.Data))
	if op.Data != nil {
		flags |= FlagOpData
		payload = append(payload, op.Data...)
	}
	le.PutUint64(payload[0:], op.Base.raw())
	le.PutUint32(payload[8:], op.Offset)
	le.PutUint32(payload[12:], size)
	return Frame{Type: TypeSyscallOp, Flags: flags, Payload: payload}
}

func ParseMemOp(f Frame) (MemOp, error) {
	if f.Type != TypeSyscallOp {
		return MemOp{}, errors.Wrapf(ErrCorruptRecord, "want sc-op, got %s", TypeName(f.Type))
	}
	p := f.Payload
	if len(p) < memOpFixedSize {
		return MemOp{}, errors.Wrapf(ErrCorruptRecord, "sc-op payload %d bytes", len(p))
	}
	op := MemOp{
		Offset: le.Uint32(p[8:]),
		Size:   le.Uint32(p[12:]),
	}
	switch f.Flags & (FlagOpUserPtr | FlagOpArgPtr) {
	case FlagOpUserPtr:
		op.Base = UserPtr(le.Uint64(p))
	case FlagOpArgPtr:
		op.Base = ArgPtr(le.Uint64(p))
	default:
		return MemOp{}, errors.Wrapf(ErrCorruptRecord, "sc-op flags %#x: need exactly one base kind", f.Flags)
	}
	rest := p[memOpFixedSize:]
	if f.Flags&FlagOpData != 0 {
		if uint64(len(rest)) != uint64(op.Size) {
			return MemOp{}, errors.Wrapf(ErrCorruptRecord, "sc-op data: size %d, have %d", op.Size, len(rest))
		}
		op.Data = append([]byte{}, rest...)
	} else if len(rest) != 0 {
		return MemOp{}, errors.Wrapf(ErrCorruptRecord, "sc-op: %d trailing bytes", len(rest))
	}
	return op, nil
}

// Target resolves the destination address against the syscall arguments.
func (op MemOp) Target(args []uint64) (uint64, error) {
	switch base := op.Base.(type) {
	case UserPtr:
		return uint64(base) + uint64(op.Offset), nil
	case ArgPtr:
		if int(base) < 0 || int(base) >= len(args) {
			return 0, errors.Errorf("sc-op references arg %d of %d", int(base), len(args))
		}
		return args[base] + uint64(op.Offset), nil
	}
	return 0, errors.Errorf("sc-op without base")
}

// SyscallBuilder collects the memory ops of one syscall before the syscall
// record and its ops are committed to a log.
type SyscallBuilder struct {
	sc        Syscall
	ops       []MemOp
	committed bool
}

func NewSyscallBuilder(xlateNr, nr uint32) *SyscallBuilder {
	return &SyscallBuilder{
		sc:  Syscall{XlateNr: xlateNr, Nr: nr},
		ops: make([]MemOp, 0, MaxSyscallOps),
	}
}

func (b *SyscallBuilder) SetRet(ret uint64) {
	b.sc.Ret = ret
}

func (b *SyscallBuilder) SetRegs(regs []byte) {
	b.sc.Regs = append([]byte{}, regs...)
}

func (b *SyscallBuilder) SetThunk() {
	b.sc.Thunk = true
}

func (b *SyscallBuilder) AddOp(op MemOp) error {
	if len(b.ops) == MaxSyscallOps {
		return errors.Wrapf(ErrOpBufferFull, "syscall %d", b.sc.Nr)
	}
	if err := op.check(); err != nil {
		return errors.Wrapf(err, "syscall %d op %d", b.sc.Nr, len(b.ops))
	}
	b.ops = append(b.ops, op)
	return nil
}

func (b *SyscallBuilder) Commit(l *Log) error {
	if b.committed {
		return errors.Wrapf(ErrAlreadyCommitted, "syscall %d", b.sc.Nr)
	}
	b.committed = true
	b.sc.OpCount = uint32(len(b.ops))
	l.Append(b.sc.Frame())
	for _, op := range b.ops {
		l.Append(op.Frame())
	}
	return nil
}
