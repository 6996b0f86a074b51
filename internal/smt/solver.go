package smt

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Solver decides satisfiability of a conjunction of path constraints.
type Solver interface {
	IsSatisfiable(ctx context.Context, constraints []Bool) (bool, error)
}

var ErrBudgetExceeded = errors.New("solver step budget exceeded")

// DomainSolver is a backtracking finite-domain solver over byte variables.
// Each variable only compared against constants ranges over the values that
// separate those constants; variables compared with other variables range over
// every byte value.
type DomainSolver struct {
	// MaxSteps bounds the number of candidate assignments tried per query; 0 is unbounded.
	MaxSteps int

	queries int64
}

func NewDomainSolver(maxSteps int) *DomainSolver {
	return &DomainSolver{MaxSteps: maxSteps}
}

// Queries returns how many satisfiability queries reached the search.
func (s *DomainSolver) Queries() int64 {
	return atomic.LoadInt64(&s.queries)
}

func (s *DomainSolver) IsSatisfiable(ctx context.Context, constraints []Bool) (bool, error) {
	_, ok, err := s.Solve(ctx, constraints)
	return ok, err
}

// Solve returns an assignment satisfying every constraint. Variables missing from
// the assignment are unconstrained by it.
func (s *DomainSolver) Solve(ctx context.Context, constraints []Bool) (Assignment, bool, error) {
	atomic.AddInt64(&s.queries, 1)
	f := And(constraints...)
	if v, ok := IsConst(f); ok {
		return Assignment{}, v, nil
	}

	vars := Vars(f)
	domains := candidateDomains(f, vars)
	sort.SliceStable(vars, func(i, j int) bool {
		return len(domains[vars[i]]) < len(domains[vars[j]])
	})

	var (
		a     = make(Assignment, len(vars))
		steps = 0
	)
	var search func(i int) (bool, error)
	search = func(i int) (bool, error) {
		if i == len(vars) {
			return Eval(f, a) == Yes, nil
		}
		key := vars[i]
		for _, v := range domains[key] {
			steps++
			if s.MaxSteps > 0 && steps > s.MaxSteps {
				return false, errors.Wrapf(ErrBudgetExceeded, "%d vars, %d steps", len(vars), steps)
			}
			if steps&0x3ff == 0 {
				if err := ctx.Err(); err != nil {
					return false, err
				}
			}
			a[key] = v
			switch Eval(f, a) {
			case Yes:
				return true, nil
			case No:
				continue
			}
			ok, err := search(i + 1)
			if err != nil || ok {
				return ok, err
			}
		}
		delete(a, key)
		return false, nil
	}

	ok, err := search(0)
	if err != nil {
		return nil, false, err
	}
	log.Debugf("domain solver: %d vars, %d steps, sat=%v", len(vars), steps, ok)
	if !ok {
		return nil, false, nil
	}
	return a.Clone(), true, nil
}

func candidateDomains(f Bool, vars []VarKey) map[VarKey][]uint8 {
	var (
		full      = make(map[VarKey]bool)
		constants = make(map[VarKey]map[uint8]struct{})
	)
	addConst := func(k VarKey, c uint8) {
		if constants[k] == nil {
			constants[k] = make(map[uint8]struct{})
		}
		constants[k][c] = struct{}{}
	}
	var walk func(Bool)
	walk = func(b Bool) {
		switch v := b.(type) {
		case Cmp:
			switch {
			case v.L.symbolic && v.R.symbolic:
				full[v.L.key] = true
				full[v.R.key] = true
			case v.L.symbolic:
				addConst(v.L.key, v.R.value)
			case v.R.symbolic:
				addConst(v.R.key, v.L.value)
			}
		case AndExpr:
			for _, x := range v {
				walk(x)
			}
		case OrExpr:
			for _, x := range v {
				walk(x)
			}
		case NotExpr:
			walk(v.X)
		}
	}
	walk(f)

	domains := make(map[VarKey][]uint8, len(vars))
	for _, k := range vars {
		if full[k] {
			all := make([]uint8, 256)
			for i := range all {
				all[i] = uint8(i)
			}
			domains[k] = all
			continue
		}
		set := map[uint8]struct{}{0: {}, 0xff: {}}
		for c := range constants[k] {
			set[c] = struct{}{}
			if c > 0 {
				set[c-1] = struct{}{}
			}
			if c < 0xff {
				set[c+1] = struct{}{}
			}
		}
		values := make([]uint8, 0, len(set))
		for c := range set {
			values = append(values, c)
		}
		sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
		domains[k] = values
	}
	return domains
}
