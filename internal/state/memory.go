package state

import (
	"sort"

	"kcore/internal/smt"
)

// Memory is the byte-addressed address space of a state. Unwritten bytes read as zero.
type Memory struct {
	memory map[uint64]smt.Byte
}

func NewMemory() *Memory {
	return &Memory{
		memory: make(map[uint64]smt.Byte),
	}
}

func (m *Memory) Size() int {
	return len(m.memory)
}

func (m *Memory) Clone() *Memory {
	newMemory := &Memory{
		memory: make(map[uint64]smt.Byte, len(m.memory)),
	}
	for k, v := range m.memory {
		newMemory.memory[k] = v
	}
	return newMemory
}

func (m *Memory) Load(addr uint64) smt.Byte {
	if b, ok := m.memory[addr]; ok {
		return b
	}
	return smt.NewByteVal(0)
}

func (m *Memory) Store(addr uint64, b smt.Byte) {
	m.memory[addr] = b
}

func (m *Memory) LoadBytes(addr uint64, n int) []smt.Byte {
	result := make([]smt.Byte, n)
	for i := range result {
		result[i] = m.Load(addr + uint64(i))
	}
	return result
}

func (m *Memory) StoreBytes(addr uint64, bs []smt.Byte) {
	for i, b := range bs {
		m.Store(addr+uint64(i), b)
	}
}

func (m *Memory) WriteConcrete(addr uint64, data []byte) {
	m.StoreBytes(addr, smt.NewBytesVal(data))
}

// Mapped reports whether addr was ever written.
func (m *Memory) Mapped(addr uint64) bool {
	_, ok := m.memory[addr]
	return ok
}

// Addresses lists written addresses in ascending order.
func (m *Memory) Addresses() []uint64 {
	addrs := make([]uint64, 0, len(m.memory))
	for k := range m.memory {
		addrs = append(addrs, k)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}
