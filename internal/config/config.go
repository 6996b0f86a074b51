// Package config is used to load the configuration file
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

type scheduler struct {
	// Prioritizer names one prioritizer or a weighted sum such as
	// "entry-window*100+depth".
	Prioritizer string `mapstructure:"prioritizer"`
	WindowAlign uint64 `mapstructure:"window-align"`
	WindowSize  uint64 `mapstructure:"window-size"`
	Seed        int64  `mapstructure:"seed"`
}

type heapConfig struct {
	RedZone    uint64 `mapstructure:"red-zone"`
	CheckLeaks bool   `mapstructure:"check-leaks"`
}

type hook struct {
	ScanLimit   int    `mapstructure:"scan-limit"`
	Solver      string `mapstructure:"solver"`
	SolverSteps int    `mapstructure:"solver-steps"`
}

type engine struct {
	StackDepth     int    `mapstructure:"stack-depth"`
	Workers        int    `mapstructure:"workers"`
	OutputDir      string `mapstructure:"output-dir"`
	RegLogInterval int    `mapstructure:"reg-log-interval"`
	MaxSteps       int    `mapstructure:"max-steps"`
}

// Config is the configuration struct
type Config struct {
	Scheduler scheduler  `mapstructure:"scheduler"`
	Heap      heapConfig `mapstructure:"heap"`
	Hook      hook       `mapstructure:"hook"`
	Engine    engine     `mapstructure:"engine"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("scheduler.prioritizer", "entry-window")
	v.SetDefault("scheduler.window-align", 16<<20)
	v.SetDefault("scheduler.window-size", 16<<20)
	v.SetDefault("scheduler.seed", 1)
	v.SetDefault("heap.red-zone", 16)
	v.SetDefault("heap.check-leaks", true)
	v.SetDefault("hook.scan-limit", 64)
	v.SetDefault("hook.solver", "domain")
	v.SetDefault("hook.solver-steps", 1<<20)
	v.SetDefault("engine.stack-depth", 1024)
	v.SetDefault("engine.workers", 1)
	v.SetDefault("engine.output-dir", ".")
	v.SetDefault("engine.reg-log-interval", 0)
	v.SetDefault("engine.max-steps", 0)
}

var prioritizers = map[string]bool{
	"entry-window": true,
	"uniform":      true,
	"random":       true,
	"depth":        true,
	"dfs":          true,
}

// Term is one weighted prioritizer of the scheduler.
type Term struct {
	Name   string
	Weight int
}

// Terms splits the prioritizer setting into its weighted terms.
func (s scheduler) Terms() ([]Term, error) {
	var terms []Term
	for _, part := range strings.Split(s.Prioritizer, "+") {
		name, weight := strings.TrimSpace(part), 1
		if i := strings.IndexByte(name, '*'); i >= 0 {
			w, err := strconv.Atoi(strings.TrimSpace(name[i+1:]))
			if err != nil || w <= 0 {
				return nil, fmt.Errorf("bad weight in prioritizer term %q", part)
			}
			name, weight = strings.TrimSpace(name[:i]), w
		}
		if !prioritizers[name] {
			return nil, fmt.Errorf("unknown prioritizer %q", name)
		}
		terms = append(terms, Term{Name: name, Weight: weight})
	}
	if len(terms) > 1 {
		for _, t := range terms {
			if t.Name == "dfs" {
				return nil, fmt.Errorf("dfs cannot be combined with other prioritizers")
			}
		}
	}
	return terms, nil
}

var solvers = map[string]bool{
	"domain": true,
	"yices":  true,
}

func (c *Config) verify() error {
	if _, err := c.Scheduler.Terms(); err != nil {
		return fmt.Errorf("config: %v", err)
	}
	if a := c.Scheduler.WindowAlign; a == 0 || a&(a-1) != 0 {
		return fmt.Errorf("config: window alignment %#x is not a power of two", a)
	}
	if c.Scheduler.WindowSize == 0 {
		c.Scheduler.WindowSize = c.Scheduler.WindowAlign
	}
	if !solvers[c.Hook.Solver] {
		return fmt.Errorf("config: unknown solver %q", c.Hook.Solver)
	}
	if c.Hook.ScanLimit <= 0 {
		return fmt.Errorf("config: scan limit must be positive")
	}
	if c.Engine.StackDepth <= 0 {
		return fmt.Errorf("config: stack depth must be positive")
	}
	if c.Engine.Workers <= 0 {
		c.Engine.Workers = 1
	}
	return nil
}

// Load unmarshals and verifies the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var c Config

	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %v", err)
	}

	if err := c.verify(); err != nil {
		return nil, fmt.Errorf("config: failed to verify: %v", err)
	}

	return &c, nil
}
