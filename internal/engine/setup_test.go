package engine

import (
	"testing"

	"kcore/internal/config"
	"kcore/internal/state"
	"kcore/internal/strategy"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadConfig(t *testing.T, kv map[string]interface{}) *config.Config {
	v := viper.New()
	config.SetDefaults(v)
	for k, val := range kv {
		v.Set(k, val)
	}
	cfg, err := config.Load(v)
	require.NoError(t, err)
	return cfg
}

func Test_NewScheduler(t *testing.T) {
	tests := []struct {
		prioritizer string
		expect      interface{}
	}{
		{"dfs", &strategy.DFS{}},
		{"uniform", &strategy.PriorityScheduler{}},
		{"entry-window", &strategy.PriorityScheduler{}},
		{"entry-window*100+depth", &strategy.PriorityScheduler{}},
	}
	for _, tt := range tests {
		cfg := loadConfig(t, map[string]interface{}{"scheduler.prioritizer": tt.prioritizer})
		sched, err := NewScheduler(cfg, 0x401000, nil)
		require.NoError(t, err, tt.prioritizer)
		assert.IsType(t, tt.expect, sched, tt.prioritizer)
	}
}

func Test_WeightedScheduler(t *testing.T) {
	tests := []struct {
		prioritizer string
		first       string
	}{
		// one window point outweighs depth 5
		{"entry-window*10+depth", "inside"},
		// depth 5 outweighs one window point
		{"entry-window+depth", "deep"},
		{"depth*3", "deep"},
	}
	for _, tt := range tests {
		cfg := loadConfig(t, map[string]interface{}{"scheduler.prioritizer": tt.prioritizer})
		sched, err := NewScheduler(cfg, 0x555555554000, nil)
		require.NoError(t, err, tt.prioritizer)

		inside := newRoot(0x555555555123)
		deep := newRoot(0x7ffff7dd0000)
		deep.Depth = 5
		require.NoError(t, sched.Push(deep, inside))
		st, err := sched.Pop()
		require.NoError(t, err)
		names := map[*state.State]string{inside: "inside", deep: "deep"}
		assert.Equal(t, tt.first, names[st], tt.prioritizer)
	}
}

func Test_EntryWindowFromConfig(t *testing.T) {
	cfg := loadConfig(t, nil)
	sched, err := NewScheduler(cfg, 0x555555554000, nil)
	require.NoError(t, err)
	outside := newRoot(0x7ffff7dd0000)
	inside := newRoot(0x555555555123)
	require.NoError(t, sched.Push(outside, inside))
	st, err := sched.Pop()
	require.NoError(t, err)
	assert.Same(t, inside, st)
}

func Test_NewHooks(t *testing.T) {
	hooks, err := NewHooks(loadConfig(t, nil))
	require.NoError(t, err)
	assert.Len(t, hooks.Models(), 8)

	_, err = NewHooks(loadConfig(t, map[string]interface{}{"hook.solver": "yices"}))
	if err != nil {
		assert.Contains(t, err.Error(), "not built in")
	}
}

func Test_NewOptionsAndRoot(t *testing.T) {
	cfg := loadConfig(t, map[string]interface{}{"engine.output-dir": "/tmp/run", "heap.red-zone": 8})
	opts := NewOptions(cfg, nil, nil)
	assert.Equal(t, "/tmp/run", opts.OutputDir)
	assert.True(t, opts.CheckLeaks)

	root := NewRoot(cfg, 0x401000)
	assert.Equal(t, uint64(8), root.Heap.RedZone())
	assert.Equal(t, uint64(0x401000), root.PC)
}
