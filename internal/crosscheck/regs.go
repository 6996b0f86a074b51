// Package crosscheck compares register logs against an independent execution.
package crosscheck

import (
	"fmt"

	"kcore/internal/breadcrumb"
)

// Register is one slot of a register file dump.
type Register struct {
	Name   string
	Offset int
	Size   int
}

// Layout maps byte offsets of a register dump onto register names.
type Layout []Register

// AMD64 is the dump layout of the general purpose amd64 registers.
var AMD64 = Layout{
	{"rax", 0, 8}, {"rcx", 8, 8}, {"rdx", 16, 8}, {"rbx", 24, 8},
	{"rsp", 32, 8}, {"rbp", 40, 8}, {"rsi", 48, 8}, {"rdi", 56, 8},
	{"r8", 64, 8}, {"r9", 72, 8}, {"r10", 80, 8}, {"r11", 88, 8},
	{"r12", 96, 8}, {"r13", 104, 8}, {"r14", 112, 8}, {"r15", 120, 8},
	{"rip", 128, 8}, {"rflags", 136, 8}, {"fs_base", 144, 8}, {"gs_base", 152, 8},
}

// Size is the dump size the layout describes.
func (l Layout) Size() int {
	size := 0
	for _, r := range l {
		if end := r.Offset + r.Size; end > size {
			size = end
		}
	}
	return size
}

// Register returns the register holding the byte at offset.
func (l Layout) Register(offset int) (Register, bool) {
	for _, r := range l {
		if offset >= r.Offset && offset < r.Offset+r.Size {
			return r, true
		}
	}
	return Register{}, false
}

// Get reads the little-endian value of the named register.
func (l Layout) Get(regs []byte, name string) (uint64, bool) {
	for _, r := range l {
		if r.Name != name || r.Offset+r.Size > len(regs) {
			continue
		}
		var v uint64
		for i := r.Size - 1; i >= 0; i-- {
			v = v<<8 | uint64(regs[r.Offset+i])
		}
		return v, true
	}
	return 0, false
}

// Put writes the little-endian value of the named register.
func (l Layout) Put(regs []byte, name string, v uint64) bool {
	for _, r := range l {
		if r.Name != name || r.Offset+r.Size > len(regs) {
			continue
		}
		for i := 0; i < r.Size; i++ {
			regs[r.Offset+i] = byte(v >> (8 * i))
		}
		return true
	}
	return false
}

// Mismatch is the first register byte where two executions disagree.
type Mismatch struct {
	Offset   int
	Register string
	Want     byte
	Got      byte
}

func (m *Mismatch) String() string {
	if m.Register == "" {
		return fmt.Sprintf("register dump differs at byte %d: want 0x%02x, got 0x%02x", m.Offset, m.Want, m.Got)
	}
	return fmt.Sprintf("register %s differs at byte %d: want 0x%02x, got 0x%02x", m.Register, m.Offset, m.Want, m.Got)
}

// Compare checks got against the concrete bytes of want. Bytes whose mask bits
// are clear hold symbolic values and are ignored. It returns nil when the dumps agree.
func (l Layout) Compare(want breadcrumb.RegDump, got []byte) *Mismatch {
	n := len(want.Regs)
	if len(got) < n {
		n = len(got)
	}
	for i := 0; i < n; i++ {
		mask := byte(0xff)
		if i < len(want.Mask) {
			mask = want.Mask[i]
		}
		if (want.Regs[i]^got[i])&mask == 0 {
			continue
		}
		m := &Mismatch{Offset: i, Want: want.Regs[i], Got: got[i]}
		if r, ok := l.Register(i); ok {
			m.Register = r.Name
		}
		return m
	}
	if len(want.Regs) != len(got) {
		return &Mismatch{Offset: n, Register: "length"}
	}
	return nil
}

// Compare checks a dump with the AMD64 layout.
func Compare(want breadcrumb.RegDump, got []byte) *Mismatch {
	return AMD64.Compare(want, got)
}
