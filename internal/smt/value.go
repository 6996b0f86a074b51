package smt

import (
	"fmt"
	"math"
	"strings"
)

// Value is the symbolic return value a modelled function hands back to the caller.
type Value interface {
	fmt.Stringer
	// Concretize evaluates the value once every byte it reads is assigned.
	Concretize(a Assignment) (int64, bool)
}

type Int int64

func (i Int) String() string {
	return fmt.Sprintf("%d", int64(i))
}

func (i Int) Concretize(Assignment) (int64, bool) {
	return int64(i), true
}

// Decimal is the base-10 value of a run of digit bytes, most significant first.
type Decimal struct {
	Digits   []Byte
	Negative bool
}

func (d Decimal) String() string {
	parts := make([]string, len(d.Digits))
	for i := range d.Digits {
		parts[i] = d.Digits[i].String()
	}
	sign := ""
	if d.Negative {
		sign = "-"
	}
	return fmt.Sprintf("%sdec(%s)", sign, strings.Join(parts, ","))
}

// Concretize fails when a digit is unassigned or not an ASCII digit, or the result
// does not fit in an int64.
func (d Decimal) Concretize(a Assignment) (int64, bool) {
	var v int64
	for _, digit := range d.Digits {
		b := digit.Resolve(a)
		if b.symbolic || b.value < '0' || b.value > '9' {
			return 0, false
		}
		n := int64(b.value - '0')
		if v > (math.MaxInt64-n)/10 {
			return 0, false
		}
		v = v*10 + n
	}
	if d.Negative {
		v = -v
	}
	return v, true
}
