//go:build yices

package smt

import (
	"context"
	"sync"

	yices2 "github.com/ianamason/yices2_go_bindings/yices_api"
	"github.com/pkg/errors"
)

var yicesOnce sync.Once

func init() {
	Register("yices", func(int) Solver { return NewYicesSolver() })
}

// YicesSolver decides constraints with yices over 8-bit bitvectors.
type YicesSolver struct {
	mu    sync.Mutex
	terms map[VarKey]yices2.TermT
}

func NewYicesSolver() *YicesSolver {
	yicesOnce.Do(yices2.Init)
	return &YicesSolver{
		terms: make(map[VarKey]yices2.TermT),
	}
}

func (s *YicesSolver) IsSatisfiable(ctx context.Context, constraints []Bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if len(constraints) == 0 {
		return true, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	terms := make([]yices2.TermT, len(constraints))
	for i := range constraints {
		terms[i] = s.term(constraints[i])
	}

	var yctx yices2.ContextT
	yices2.InitContext(yices2.ConfigT{}, &yctx)
	defer yices2.CloseContext(&yctx)
	if errcode := yices2.AssertFormulas(yctx, terms); errcode < 0 {
		return false, errors.Errorf("assert formulas: %s", yices2.ErrorString())
	}
	switch status := yices2.CheckContext(yctx, yices2.ParamT{}); status {
	case yices2.StatusSat:
		return true, nil
	case yices2.StatusUnsat:
		return false, nil
	default:
		return false, errors.Errorf("check context: status %d: %s", status, yices2.ErrorString())
	}
}

func (s *YicesSolver) byteTerm(b Byte) yices2.TermT {
	if !b.symbolic {
		return yices2.BvconstUint32(8, uint32(b.value))
	}
	if t, ok := s.terms[b.key]; ok {
		return t
	}
	t := yices2.NewUninterpretedTerm(yices2.BvType(8))
	yices2.SetTermName(t, b.key.String())
	s.terms[b.key] = t
	return t
}

func (s *YicesSolver) term(b Bool) yices2.TermT {
	switch v := b.(type) {
	case BoolVal:
		if v {
			return yices2.True()
		}
		return yices2.False()
	case Cmp:
		l, r := s.byteTerm(v.L), s.byteTerm(v.R)
		switch v.Op {
		case OpEq:
			return yices2.BveqAtom(l, r)
		case OpNe:
			return yices2.BvneqAtom(l, r)
		case OpUlt:
			return yices2.BvltAtom(l, r)
		case OpUle:
			return yices2.Not(yices2.BvgtAtom(l, r))
		case OpUgt:
			return yices2.BvgtAtom(l, r)
		default:
			return yices2.Not(yices2.BvltAtom(l, r))
		}
	case AndExpr:
		terms := make([]yices2.TermT, len(v))
		for i := range v {
			terms[i] = s.term(v[i])
		}
		return yices2.And(terms)
	case OrExpr:
		t := s.term(v[0])
		for i := 1; i < len(v); i++ {
			t = yices2.Or2(t, s.term(v[i]))
		}
		return t
	case NotExpr:
		return yices2.Not(s.term(v.X))
	}
	return yices2.False()
}
