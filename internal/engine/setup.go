package engine

import (
	"kcore/internal/config"
	"kcore/internal/hook"
	"kcore/internal/smt"
	"kcore/internal/state"
	"kcore/internal/strategy"
)

// randomSpread is the score range of the random prioritizer.
const randomSpread = 1 << 16

// NewScheduler builds the scheduler cfg names. The entry window is placed
// around entry.
func NewScheduler(cfg *config.Config, entry uint64, resolver strategy.AddressResolver) (strategy.Strategy, error) {
	terms, err := cfg.Scheduler.Terms()
	if err != nil {
		return nil, err
	}
	if len(terms) == 1 && terms[0].Name == "dfs" {
		return strategy.NewDFS(), nil
	}
	if len(terms) == 1 && terms[0].Weight == 1 {
		return strategy.NewPriorityScheduler(prioritizer(cfg, terms[0].Name, entry, resolver)), nil
	}
	sum := strategy.NewSum()
	for _, t := range terms {
		sum.Add(prioritizer(cfg, t.Name, entry, resolver), t.Weight)
	}
	return strategy.NewPriorityScheduler(sum), nil
}

func prioritizer(cfg *config.Config, name string, entry uint64, resolver strategy.AddressResolver) strategy.Prioritizer {
	s := cfg.Scheduler
	switch name {
	case "uniform":
		return strategy.Uniform{}
	case "random":
		return strategy.NewRandom(s.Seed, randomSpread)
	case "depth":
		return strategy.DepthFirst{}
	}
	return &strategy.EntryWindow{
		Window:   strategy.NewWindow(entry, s.WindowAlign, s.WindowSize),
		Resolver: resolver,
	}
}

// NewHooks builds a hook manager backed by the configured solver.
func NewHooks(cfg *config.Config) (*hook.Manager, error) {
	solver, err := smt.New(cfg.Hook.Solver, cfg.Hook.SolverSteps)
	if err != nil {
		return nil, err
	}
	return hook.NewManager(solver, cfg.Hook.ScanLimit), nil
}

func NewOptions(cfg *config.Config, hooks *hook.Manager, paths *PathCounter) Options {
	return Options{
		Hooks:          hooks,
		CheckLeaks:     cfg.Heap.CheckLeaks,
		OutputDir:      cfg.Engine.OutputDir,
		RegLogInterval: uint64(cfg.Engine.RegLogInterval),
		MaxSteps:       cfg.Engine.MaxSteps,
		Paths:          paths,
	}
}

// NewRoot returns an initial state at pc sized by cfg.
func NewRoot(cfg *config.Config, pc uint64) *state.State {
	return state.NewState(pc, cfg.Engine.StackDepth, cfg.Heap.RedZone)
}
