package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func Test_LoadDefaults(t *testing.T) {
	c, err := Load(newViper())
	require.NoError(t, err)
	assert.Equal(t, "entry-window", c.Scheduler.Prioritizer)
	assert.Equal(t, uint64(16<<20), c.Scheduler.WindowAlign)
	assert.Equal(t, uint64(16<<20), c.Scheduler.WindowSize)
	assert.Equal(t, uint64(16), c.Heap.RedZone)
	assert.True(t, c.Heap.CheckLeaks)
	assert.Equal(t, 64, c.Hook.ScanLimit)
	assert.Equal(t, "domain", c.Hook.Solver)
	assert.Equal(t, 1024, c.Engine.StackDepth)
	assert.Equal(t, 1, c.Engine.Workers)
}

func Test_LoadYAML(t *testing.T) {
	v := newViper()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
scheduler:
  prioritizer: depth
  window-align: 4096
  window-size: 0
heap:
  red-zone: 32
engine:
  workers: 4
  output-dir: /tmp/out
`)))
	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "depth", c.Scheduler.Prioritizer)
	assert.Equal(t, uint64(4096), c.Scheduler.WindowAlign)
	assert.Equal(t, uint64(4096), c.Scheduler.WindowSize)
	assert.Equal(t, uint64(32), c.Heap.RedZone)
	assert.Equal(t, 4, c.Engine.Workers)
	assert.Equal(t, "/tmp/out", c.Engine.OutputDir)
}

func Test_LoadRejects(t *testing.T) {
	tests := []struct {
		key   string
		value interface{}
		err   string
	}{
		{"scheduler.window-align", 3000, "not a power of two"},
		{"scheduler.window-align", 0, "not a power of two"},
		{"scheduler.prioritizer", "lifo", "unknown prioritizer"},
		{"scheduler.prioritizer", "entry-window+lifo", "unknown prioritizer"},
		{"scheduler.prioritizer", "depth*0", "bad weight"},
		{"scheduler.prioritizer", "depth*x+uniform", "bad weight"},
		{"scheduler.prioritizer", "dfs+depth", "cannot be combined"},
		{"hook.solver", "z3", "unknown solver"},
		{"hook.scan-limit", 0, "scan limit"},
		{"engine.stack-depth", -1, "stack depth"},
	}
	for _, tt := range tests {
		v := newViper()
		v.Set(tt.key, tt.value)
		_, err := Load(v)
		require.Error(t, err, tt.key)
		assert.Contains(t, err.Error(), tt.err)
	}
}

func Test_SchedulerTerms(t *testing.T) {
	tests := []struct {
		prioritizer string
		expect      []Term
	}{
		{"dfs", []Term{{"dfs", 1}}},
		{"entry-window+depth", []Term{{"entry-window", 1}, {"depth", 1}}},
		{"entry-window*100 + depth*2", []Term{{"entry-window", 100}, {"depth", 2}}},
	}
	for _, tt := range tests {
		terms, err := scheduler{Prioritizer: tt.prioritizer}.Terms()
		require.NoError(t, err, tt.prioritizer)
		assert.Equal(t, tt.expect, terms, tt.prioritizer)
	}
}
