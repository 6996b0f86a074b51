package strategy

import (
	"kcore/internal/state"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	log "github.com/sirupsen/logrus"
)

type queued struct {
	st       *state.State
	priority int
	seq      uint64
}

// PriorityScheduler keeps live states in priority buckets. Pop takes the oldest
// state of the highest non-empty bucket, so equal priorities run first in,
// first out and a state scoring zero still runs once nothing scores higher.
type PriorityScheduler struct {
	prioritizer Prioritizer
	// priority -> (seq -> *queued)
	buckets   *treemap.Map
	queued    map[uint64]*queued
	suspended map[uint64]*state.State
	retired   map[uint64]string
	seq       uint64
}

func NewPriorityScheduler(p Prioritizer) *PriorityScheduler {
	return &PriorityScheduler{
		prioritizer: p,
		buckets:     treemap.NewWith(utils.IntComparator),
		queued:      make(map[uint64]*queued),
		suspended:   make(map[uint64]*state.State),
		retired:     make(map[uint64]string),
	}
}

func (ps *PriorityScheduler) bucket(priority int, create bool) *treemap.Map {
	if b, ok := ps.buckets.Get(priority); ok {
		return b.(*treemap.Map)
	}
	if !create {
		return nil
	}
	b := treemap.NewWith(utils.UInt64Comparator)
	ps.buckets.Put(priority, b)
	return b
}

func (ps *PriorityScheduler) insert(st *state.State) {
	ps.seq++
	q := &queued{st: st, priority: ps.prioritizer.Priority(st), seq: ps.seq}
	ps.bucket(q.priority, true).Put(q.seq, q)
	ps.queued[st.ID] = q
	st.Status = state.Live
}

func (ps *PriorityScheduler) remove(q *queued) {
	if b := ps.bucket(q.priority, false); b != nil {
		b.Remove(q.seq)
		if b.Empty() {
			ps.buckets.Remove(q.priority)
		}
	}
	delete(ps.queued, q.st.ID)
}

func (ps *PriorityScheduler) Size() int {
	return len(ps.queued)
}

func (ps *PriorityScheduler) HasNext() bool {
	return len(ps.queued) > 0
}

// Push queues states; retired, suspended and already queued states are ignored.
func (ps *PriorityScheduler) Push(states ...*state.State) error {
	for _, st := range states {
		if _, ok := ps.retired[st.ID]; ok {
			log.Debugf("scheduler: ignoring retired %s", st)
			continue
		}
		if _, ok := ps.suspended[st.ID]; ok {
			continue
		}
		if _, ok := ps.queued[st.ID]; ok {
			continue
		}
		ps.insert(st)
	}
	return nil
}

// SelectNext returns the state Pop would return without dequeuing it.
func (ps *PriorityScheduler) SelectNext() (*state.State, bool) {
	if ps.buckets.Empty() {
		return nil, false
	}
	_, b := ps.buckets.Max()
	_, q := b.(*treemap.Map).Min()
	return q.(*queued).st, true
}

func (ps *PriorityScheduler) Pop() (*state.State, error) {
	st, ok := ps.SelectNext()
	if !ok {
		return nil, ErrEmpty
	}
	ps.remove(ps.queued[st.ID])
	return st, nil
}

// Update rescores a queued state and moves it behind its new peers.
func (ps *PriorityScheduler) Update(st *state.State) {
	q, ok := ps.queued[st.ID]
	if !ok {
		return
	}
	ps.remove(q)
	ps.insert(st)
}

// Suspend parks a queued state until Resume.
func (ps *PriorityScheduler) Suspend(st *state.State) {
	if q, ok := ps.queued[st.ID]; ok {
		ps.remove(q)
	}
	if _, ok := ps.retired[st.ID]; ok {
		return
	}
	ps.suspended[st.ID] = st
	st.Status = state.Suspended
}

func (ps *PriorityScheduler) Resume(st *state.State) {
	if _, ok := ps.suspended[st.ID]; !ok {
		return
	}
	delete(ps.suspended, st.ID)
	ps.insert(st)
}

func (ps *PriorityScheduler) Retire(st *state.State, reason string) bool {
	if q, ok := ps.queued[st.ID]; ok {
		ps.remove(q)
	}
	delete(ps.suspended, st.ID)
	return retire(ps.retired, st, reason)
}

func (ps *PriorityScheduler) Retired() int {
	return len(ps.retired)
}

func (ps *PriorityScheduler) Suspended() int {
	return len(ps.suspended)
}
