package strategy

import (
	"math/rand"

	"kcore/internal/state"
)

// Prioritizer scores a state; higher scores are scheduled first.
type Prioritizer interface {
	Priority(st *state.State) int
}

type PrioritizerFunc func(st *state.State) int

func (f PrioritizerFunc) Priority(st *state.State) int {
	return f(st)
}

// AddressResolver finds the address a state is about to execute.
type AddressResolver interface {
	CurrentAddress(st *state.State) (uint64, bool)
}

const DefaultWindowAlign = 16 << 20

// Window is the address range around the program entry point.
type Window struct {
	Base uint64
	End  uint64
}

// NewWindow rounds entry down to align, a power of two, and spans size bytes from there.
func NewWindow(entry, align, size uint64) Window {
	base := entry &^ (align - 1)
	return Window{Base: base, End: base + size}
}

func (w Window) Contains(addr uint64) bool {
	return addr >= w.Base && addr < w.End
}

// EntryWindow prefers states executing inside the main program image over
// states deep inside libraries. States whose address cannot be resolved score
// as inside.
type EntryWindow struct {
	Window   Window
	Resolver AddressResolver
}

func (p *EntryWindow) Priority(st *state.State) int {
	addr, ok := st.PC, st.PC != 0
	if p.Resolver != nil {
		addr, ok = p.Resolver.CurrentAddress(st)
	}
	if !ok || p.Window.Contains(addr) {
		return 1
	}
	return 0
}

// Uniform gives every state the same score, which leaves plain FIFO order.
type Uniform struct{}

func (Uniform) Priority(*state.State) int {
	return 0
}

// Random scores states uniformly in [0, Spread).
type Random struct {
	rng    *rand.Rand
	spread int
}

func NewRandom(seed int64, spread int) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed)), spread: spread}
}

func (r *Random) Priority(*state.State) int {
	return r.rng.Intn(r.spread)
}

// DepthFirst prefers the deepest states.
type DepthFirst struct{}

func (DepthFirst) Priority(st *state.State) int {
	return st.Depth
}

// Sum adds the scores of several prioritizers, each scaled by its weight.
type Sum struct {
	terms []weighted
}

type weighted struct {
	p      Prioritizer
	weight int
}

func NewSum() *Sum {
	return &Sum{}
}

func (s *Sum) Add(p Prioritizer, weight int) *Sum {
	s.terms = append(s.terms, weighted{p: p, weight: weight})
	return s
}

func (s *Sum) Priority(st *state.State) int {
	total := 0
	for _, t := range s.terms {
		total += t.weight * t.p.Priority(st)
	}
	return total
}
