// Package heap shadows the allocator of the program under test and flags
// heap-safety violations as they happen.
package heap

import (
	"github.com/benbjohnson/immutable"
	log "github.com/sirupsen/logrus"
)

const DefaultRedZone = 16

// Shadow tracks every heap region of one execution state. Regions live in a
// persistent sorted map, so Clone is constant time and the copies are independent.
type Shadow struct {
	regions *immutable.SortedMap
	redZone uint64
}

func NewShadow(redZone uint64) *Shadow {
	return &Shadow{
		regions: immutable.NewSortedMap(&uint64Comparer{}),
		redZone: redZone,
	}
}

func (s *Shadow) Clone() *Shadow {
	c := *s
	return &c
}

func (s *Shadow) RedZone() uint64 {
	return s.redZone
}

func (s *Shadow) get(base uint64) *Region {
	if v, ok := s.regions.Get(base); ok {
		return v.(*Region)
	}
	return nil
}

func (s *Shadow) put(r *Region) {
	s.regions = s.regions.Set(r.Base, r)
}

// floor returns the region with the greatest base not above addr.
func (s *Shadow) floor(addr uint64) *Region {
	if s.regions.Len() == 0 {
		return nil
	}
	itr := s.regions.Iterator()
	if itr.Seek(addr); itr.Done() {
		itr.Last()
	}
	for !itr.Done() {
		k, v := itr.Prev()
		if k.(uint64) <= addr {
			return v.(*Region)
		}
	}
	return nil
}

// above returns the region with the smallest base strictly above addr.
func (s *Shadow) above(addr uint64) *Region {
	if s.regions.Len() == 0 || addr == ^uint64(0) {
		return nil
	}
	itr := s.regions.Iterator()
	if itr.Seek(addr + 1); itr.Done() {
		return nil
	}
	_, v := itr.Next()
	return v.(*Region)
}

// overlapping lists the regions intersecting [base, base+length).
func (s *Shadow) overlapping(base, length uint64) []*Region {
	var result []*Region
	if r := s.floor(base); r != nil && r.Base < base && r.End() > base {
		result = append(result, r)
	}
	itr := s.regions.Iterator()
	for itr.Seek(base); !itr.Done(); {
		k, v := itr.Next()
		if k.(uint64) >= base+length && !(length == 0 && k.(uint64) == base) {
			break
		}
		result = append(result, v.(*Region))
	}
	return result
}

// OnAlloc records an allocation of length bytes at base. Freed regions it
// overlaps are forgotten.
func (s *Shadow) OnAlloc(base, length uint64) *Violation {
	return s.alloc(base, length, false)
}

// OnAllocZeroed records an allocation whose bytes start out initialised.
func (s *Shadow) OnAllocZeroed(base, length uint64) *Violation {
	return s.alloc(base, length, true)
}

func (s *Shadow) alloc(base, length uint64, zeroed bool) *Violation {
	overlaps := s.overlapping(base, length)
	for _, r := range overlaps {
		if r.Live() {
			return &Violation{Kind: DoubleAllocation, Addr: base, Len: length, Region: r}
		}
	}
	for _, r := range overlaps {
		s.regions = s.regions.Delete(r.Base)
	}
	s.put(newRegion(base, length, zeroed))
	log.Debugf("heap: alloc %#x+%d", base, length)
	return nil
}

// OnFree records free(base). Freeing address zero does nothing.
func (s *Shadow) OnFree(base uint64) *Violation {
	if base == 0 {
		return nil
	}
	r := s.get(base)
	if r == nil {
		v := &Violation{Kind: InvalidFree, Addr: base}
		if owner := s.floor(base); owner != nil && owner.Contains(base) {
			v.Region = owner
		}
		return v
	}
	if r.State == Free {
		return &Violation{Kind: DoubleFree, Addr: base, Region: r}
	}
	s.put(&Region{Base: r.Base, Len: r.Len, State: Free})
	log.Debugf("heap: free %#x", base)
	return nil
}

// OnAccess checks an n byte access at addr. Reads of uninitialised bytes are
// tracked but never reported.
func (s *Shadow) OnAccess(addr, n uint64, write bool) *Violation {
	if n == 0 {
		return nil
	}
	end := addr + n

	if r := s.floor(addr); r != nil && r.Contains(addr) {
		switch {
		case r.State == Free:
			return &Violation{Kind: UseAfterFree, Addr: addr, Len: n, Write: write, Region: r}
		case end > r.End():
			return &Violation{Kind: OutOfBounds, Addr: addr, Len: n, Write: write, Region: r}
		}
		if write {
			nr := r.clone()
			nr.State = Alloc
			nr.markInit(addr, n)
			s.put(nr)
		}
		return nil
	}

	next := s.above(addr)
	if next != nil && end > next.Base {
		if next.State == Free {
			return &Violation{Kind: UseAfterFree, Addr: addr, Len: n, Write: write, Region: next}
		}
		return &Violation{Kind: OutOfBounds, Addr: addr, Len: n, Write: write, Region: next}
	}
	if prev := s.floor(addr); prev != nil && prev.Live() && addr < prev.End()+s.redZone {
		return &Violation{Kind: OutOfBounds, Addr: addr, Len: n, Write: write, Region: prev}
	}
	if next != nil && next.Live() && end+s.redZone > next.Base {
		return &Violation{Kind: OutOfBounds, Addr: addr, Len: n, Write: write, Region: next}
	}
	return nil
}

// Initialized reports whether the heap byte at addr has been written since allocation.
func (s *Shadow) Initialized(addr uint64) bool {
	r := s.floor(addr)
	return r != nil && r.Initialized(addr)
}

// Lookup returns the region containing addr.
func (s *Shadow) Lookup(addr uint64) (*Region, bool) {
	r := s.floor(addr)
	if r == nil || !r.Contains(addr) {
		return nil, false
	}
	return r, true
}

// Regions lists all tracked regions in address order.
func (s *Shadow) Regions() []*Region {
	result := make([]*Region, 0, s.regions.Len())
	itr := s.regions.Iterator()
	for !itr.Done() {
		_, v := itr.Next()
		result = append(result, v.(*Region))
	}
	return result
}

// LiveBytes sums the lengths of live regions.
func (s *Shadow) LiveBytes() uint64 {
	var total uint64
	for _, r := range s.Regions() {
		if r.Live() {
			total += r.Len
		}
	}
	return total
}

// Leaks reports one Leak per region still live, in address order.
func (s *Shadow) Leaks() []*Violation {
	var leaks []*Violation
	for _, r := range s.Regions() {
		if r.Live() {
			leaks = append(leaks, &Violation{Kind: Leak, Addr: r.Base, Len: r.Len, Region: r})
		}
	}
	return leaks
}

// uint64Comparer orders region bases. Implements immutable.Comparer.
type uint64Comparer struct{}

func (c *uint64Comparer) Compare(a, b interface{}) int {
	if i, j := a.(uint64), b.(uint64); i < j {
		return -1
	} else if i > j {
		return 1
	}
	return 0
}
