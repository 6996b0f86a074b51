package heap

import "fmt"

type RegionState int

const (
	Uninit RegionState = iota
	Alloc
	Free
)

func (s RegionState) String() string {
	switch s {
	case Uninit:
		return "uninit"
	case Alloc:
		return "alloc"
	case Free:
		return "free"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Region describes one heap allocation. Regions are never mutated once stored;
// updates replace them, so shadows forked from one another never interfere.
type Region struct {
	Base  uint64
	Len   uint64
	State RegionState
	init  []uint64
}

func newRegion(base, length uint64, zeroed bool) *Region {
	r := &Region{
		Base:  base,
		Len:   length,
		State: Uninit,
		init:  make([]uint64, (length+63)/64),
	}
	if zeroed {
		r.State = Alloc
		r.markInit(base, length)
	}
	return r
}

func (r *Region) End() uint64 {
	return r.Base + r.Len
}

func (r *Region) Live() bool {
	return r.State != Free
}

func (r *Region) Contains(addr uint64) bool {
	return addr >= r.Base && addr < r.End()
}

func (r *Region) Initialized(addr uint64) bool {
	if !r.Contains(addr) || r.State == Free {
		return false
	}
	i := addr - r.Base
	return r.init[i/64]&(1<<(i%64)) != 0
}

func (r *Region) clone() *Region {
	c := *r
	c.init = append([]uint64(nil), r.init...)
	return &c
}

// markInit sets the init bits for [addr, addr+n) clipped to the region.
func (r *Region) markInit(addr, n uint64) {
	start, end := addr, addr+n
	if start < r.Base {
		start = r.Base
	}
	if end > r.End() {
		end = r.End()
	}
	for a := start; a < end; a++ {
		i := a - r.Base
		r.init[i/64] |= 1 << (i % 64)
	}
}

func (r *Region) String() string {
	return fmt.Sprintf("[%#x, %#x) %s", r.Base, r.End(), r.State)
}
