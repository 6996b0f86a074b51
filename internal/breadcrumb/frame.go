// Package breadcrumb implements the binary annotation log that records the
// non-deterministic events of a path so it can be replayed or cross-checked.
//
// Every record is a little-endian header {type u32, flags u32, size u32}
// followed by exactly size payload bytes. Flags are interpreted per type.
package breadcrumb

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	TypeBogus     uint32 = 0
	TypeSyscall   uint32 = 1
	TypeRegs      uint32 = 2
	TypeSyscallOp uint32 = 3
	TypeStackLog  uint32 = 4
	TypeMemLog    uint32 = 5
	TypeBranch    uint32 = 6
	// TypeUser starts the range left open for tool-specific records.
	TypeUser uint32 = 0xffff0000
)

// syscall flags
const (
	FlagNewRegs uint32 = 1 << iota
	FlagThunk
)

// syscall op flags
const (
	FlagOpUserPtr uint32 = 1 << iota
	FlagOpArgPtr
	FlagOpData
)

const (
	HeaderSize = 12
	// MaxPayload guards readers against absurd sizes in damaged logs.
	MaxPayload = 64 << 20
)

var (
	ErrCorruptRecord    = errors.New("corrupt breadcrumb record")
	ErrSyscallMismatch  = errors.New("syscall number mismatch")
	ErrLogExhausted     = errors.New("breadcrumb log exhausted")
	ErrUnexpectedFrame  = errors.New("unexpected breadcrumb type")
	ErrOpBufferFull     = errors.New("syscall op buffer full")
	ErrAlreadyCommitted = errors.New("syscall already committed")
	ErrBadOp            = errors.New("malformed syscall op")
	ErrBranchMismatch   = errors.New("branch fan-out mismatch")
)

var typeNames = map[uint32]string{
	TypeBogus:     "bogus",
	TypeSyscall:   "syscall",
	TypeRegs:      "regs",
	TypeSyscallOp: "sc-op",
	TypeStackLog:  "stacklog",
	TypeMemLog:    "memlog",
	TypeBranch:    "branch",
}

func TypeName(t uint32) string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	if t >= TypeUser {
		return fmt.Sprintf("user+%d", t-TypeUser)
	}
	return fmt.Sprintf("unknown(%d)", t)
}

// Known reports whether the codec has a typed view for t.
func Known(t uint32) bool {
	_, ok := typeNames[t]
	return ok
}

type Frame struct {
	Type    uint32
	Flags   uint32
	Payload []byte
}

// Size is the declared payload length of the record.
func (f Frame) Size() uint32 {
	return uint32(len(f.Payload))
}

func (f Frame) String() string {
	return fmt.Sprintf("%s flags=%#x size=%d", TypeName(f.Type), f.Flags, f.Size())
}
