// Package strategy decides which live execution state advances next.
package strategy

import (
	"kcore/internal/state"
)

type Strategy interface {
	Size() int
	HasNext() bool
	Pop() (*state.State, error)
	Push(...*state.State) error
	// Retire terminates a state for good; it reports false if it was already retired.
	Retire(st *state.State, reason string) bool
}

func retire(retired map[uint64]string, st *state.State, reason string) bool {
	if _, ok := retired[st.ID]; ok {
		return false
	}
	retired[st.ID] = reason
	st.Status = state.Terminated
	st.Reason = reason
	return true
}
