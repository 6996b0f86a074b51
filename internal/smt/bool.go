package smt

import (
	"fmt"
	"strings"
)

type CmpOp int

const (
	OpEq CmpOp = iota
	OpNe
	OpUlt
	OpUle
	OpUgt
	OpUge
)

var cmpOpNames = [...]string{"==", "!=", "<u", "<=u", ">u", ">=u"}

func (op CmpOp) String() string {
	if int(op) < len(cmpOpNames) {
		return cmpOpNames[op]
	}
	return fmt.Sprintf("op(%d)", int(op))
}

func (op CmpOp) negate() CmpOp {
	switch op {
	case OpEq:
		return OpNe
	case OpNe:
		return OpEq
	case OpUlt:
		return OpUge
	case OpUle:
		return OpUgt
	case OpUgt:
		return OpUle
	default:
		return OpUlt
	}
}

func (op CmpOp) apply(l, r uint8) bool {
	switch op {
	case OpEq:
		return l == r
	case OpNe:
		return l != r
	case OpUlt:
		return l < r
	case OpUle:
		return l <= r
	case OpUgt:
		return l > r
	default:
		return l >= r
	}
}

// Bool is a boolean formula over symbolic bytes. Constructors fold constants,
// so a formula without variables is always a BoolVal.
type Bool interface {
	fmt.Stringer
	isBool()
}

type BoolVal bool

type Cmp struct {
	Op   CmpOp
	L, R Byte
}

type AndExpr []Bool

type OrExpr []Bool

type NotExpr struct {
	X Bool
}

func (BoolVal) isBool() {}
func (Cmp) isBool()     {}
func (AndExpr) isBool() {}
func (OrExpr) isBool()  {}
func (NotExpr) isBool() {}

func (b BoolVal) String() string {
	if b {
		return "true"
	}
	return "false"
}

func (c Cmp) String() string {
	return fmt.Sprintf("(%s %s %s)", c.L, c.Op, c.R)
}

func (a AndExpr) String() string {
	return joinBools("and", a)
}

func (o OrExpr) String() string {
	return joinBools("or", o)
}

func (n NotExpr) String() string {
	return fmt.Sprintf("(not %s)", n.X)
}

func joinBools(op string, xs []Bool) string {
	parts := make([]string, len(xs))
	for i := range xs {
		parts[i] = xs[i].String()
	}
	return fmt.Sprintf("(%s %s)", op, strings.Join(parts, " "))
}

func NewBoolVal(value bool) Bool {
	return BoolVal(value)
}

func True() Bool  { return BoolVal(true) }
func False() Bool { return BoolVal(false) }

// IsConst reports whether b folded to a constant and its value.
func IsConst(b Bool) (value bool, ok bool) {
	v, ok := b.(BoolVal)
	return bool(v), ok
}

func IsTrue(b Bool) bool {
	v, ok := IsConst(b)
	return ok && v
}

func IsFalse(b Bool) bool {
	v, ok := IsConst(b)
	return ok && !v
}

func NewCmp(op CmpOp, l, r Byte) Bool {
	if !l.symbolic && !r.symbolic {
		return BoolVal(op.apply(l.value, r.value))
	}
	if l.symbolic && r.symbolic && l.key == r.key {
		return BoolVal(op.apply(0, 0))
	}
	return Cmp{Op: op, L: l, R: r}
}

func Eq(l, r Byte) Bool  { return NewCmp(OpEq, l, r) }
func Ne(l, r Byte) Bool  { return NewCmp(OpNe, l, r) }
func Ult(l, r Byte) Bool { return NewCmp(OpUlt, l, r) }
func Ule(l, r Byte) Bool { return NewCmp(OpUle, l, r) }
func Ugt(l, r Byte) Bool { return NewCmp(OpUgt, l, r) }
func Uge(l, r Byte) Bool { return NewCmp(OpUge, l, r) }

func And(xs ...Bool) Bool {
	result := make(AndExpr, 0, len(xs))
	for _, x := range xs {
		switch v := x.(type) {
		case BoolVal:
			if !v {
				return False()
			}
		case AndExpr:
			result = append(result, v...)
		default:
			result = append(result, x)
		}
	}
	switch len(result) {
	case 0:
		return True()
	case 1:
		return result[0]
	}
	return result
}

func Or(xs ...Bool) Bool {
	result := make(OrExpr, 0, len(xs))
	for _, x := range xs {
		switch v := x.(type) {
		case BoolVal:
			if v {
				return True()
			}
		case OrExpr:
			result = append(result, v...)
		default:
			result = append(result, x)
		}
	}
	switch len(result) {
	case 0:
		return False()
	case 1:
		return result[0]
	}
	return result
}

func Not(x Bool) Bool {
	switch v := x.(type) {
	case BoolVal:
		return !v
	case Cmp:
		return Cmp{Op: v.Op.negate(), L: v.L, R: v.R}
	case NotExpr:
		return v.X
	}
	return NotExpr{X: x}
}
