package strategy

import (
	"kcore/internal/state"

	"github.com/pkg/errors"
)

var ErrEmpty = errors.New("state queue is empty")

// DFS 深度优先搜索策略
type DFS struct {
	states  []*state.State
	retired map[uint64]string
}

func NewDFS() *DFS {
	return &DFS{
		states:  make([]*state.State, 0),
		retired: make(map[uint64]string),
	}
}

func (dfs *DFS) Size() int {
	return len(dfs.states)
}

func (dfs *DFS) HasNext() bool {
	return len(dfs.states) > 0
}

func (dfs *DFS) Pop() (*state.State, error) {
	if len(dfs.states) <= 0 {
		return nil, ErrEmpty
	}
	st := dfs.states[len(dfs.states)-1]
	dfs.states = dfs.states[:len(dfs.states)-1]
	return st, nil
}

func (dfs *DFS) Push(states ...*state.State) error {
	for _, st := range states {
		if _, ok := dfs.retired[st.ID]; ok {
			continue
		}
		dfs.states = append(dfs.states, st)
	}
	return nil
}

func (dfs *DFS) Retire(st *state.State, reason string) bool {
	for i := range dfs.states {
		if dfs.states[i] == st {
			dfs.states = append(dfs.states[:i], dfs.states[i+1:]...)
			break
		}
	}
	return retire(dfs.retired, st, reason)
}
