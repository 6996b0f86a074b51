package state

import "kcore/internal/smt"

type Constraint struct {
	constraints []smt.Bool
}

func NewConstraints(constraints ...smt.Bool) *Constraint {
	c := &Constraint{
		constraints: make([]smt.Bool, len(constraints)),
	}
	copy(c.constraints, constraints)
	return c
}

// AppendBool conjoins val; constant true is dropped.
func (c *Constraint) AppendBool(val smt.Bool) {
	if smt.IsTrue(val) {
		return
	}
	c.constraints = append(c.constraints, val)
}

func (c *Constraint) GetConstraints() []smt.Bool {
	return c.constraints
}

// With returns the constraints followed by extra, without modifying c.
func (c *Constraint) With(extra ...smt.Bool) []smt.Bool {
	result := make([]smt.Bool, 0, len(c.constraints)+len(extra))
	result = append(result, c.constraints...)
	return append(result, extra...)
}

func (c *Constraint) Len() int {
	return len(c.constraints)
}

func (c *Constraint) Clone() *Constraint {
	return NewConstraints(c.constraints...)
}
