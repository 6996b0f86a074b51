package smt

import (
	"sort"

	"github.com/pkg/errors"
)

var solvers = map[string]func(maxSteps int) Solver{
	"domain": func(maxSteps int) Solver { return NewDomainSolver(maxSteps) },
}

// Register makes a solver backend available to New.
func Register(name string, fn func(maxSteps int) Solver) {
	solvers[name] = fn
}

// New returns the solver backend called name.
func New(name string, maxSteps int) (Solver, error) {
	fn, ok := solvers[name]
	if !ok {
		return nil, errors.Errorf("solver %q not built in (have %v)", name, Backends())
	}
	return fn(maxSteps), nil
}

func Backends() []string {
	names := make([]string, 0, len(solvers))
	for name := range solvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
