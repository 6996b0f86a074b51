package hook

import "kcore/internal/smt"

// maxDigits is the longest digit run whose value always fits an int64.
const maxDigits = 18

func isDigit(b smt.Byte) smt.Bool {
	return smt.And(smt.Uge(b, smt.NewByteVal('0')), smt.Ule(b, smt.NewByteVal('9')))
}

func isSpace(b smt.Byte) smt.Bool {
	return smt.Or(
		smt.Eq(b, smt.NewByteVal(' ')),
		smt.And(smt.Uge(b, smt.NewByteVal('\t')), smt.Ule(b, smt.NewByteVal('\r'))),
	)
}

// strtolModel handles base 10 conversions. The cases partition inputs by sign
// and by the length of the digit run; leading white space, runs long enough to
// overflow and runs reaching unreadable memory are left to the interpreter.
func strtolModel(c *Call) ([]Case, error) {
	if c.arg(2) != 10 {
		return nil, nil
	}
	var (
		s    = c.arg(0)
		endp = c.arg(1)
	)
	bs := c.scan(s, c.limit, true)
	if len(bs) == 0 {
		return nil, nil
	}
	endAt := func(off int) []Store {
		if endp == 0 {
			return nil
		}
		return []Store{pointerStore(endp, s+uint64(off))}
	}

	var (
		cases caseList
		first = bs[0]
		space = isSpace(first)
		minus = smt.Eq(first, smt.NewByteVal('-'))
		plus  = smt.Eq(first, smt.NewByteVal('+'))
	)
	cases.add(Case{Label: "space", Constraint: space, Emulate: true})

	signs := []struct {
		name     string
		cond     smt.Bool
		start    int
		negative bool
	}{
		{"", smt.And(smt.Not(space), smt.Not(minus), smt.Not(plus)), 0, false},
		{"+", plus, 1, false},
		{"-", minus, 1, true},
	}
	for _, sign := range signs {
		if smt.IsFalse(sign.cond) {
			continue
		}
		digits := bs[sign.start:]
		prefix := sign.cond
		for d := 0; ; d++ {
			if d > maxDigits {
				cases.add(Case{Label: label("%soverflow", sign.name), Constraint: prefix, Emulate: true})
				break
			}
			if d == len(digits) {
				cases.add(Case{Label: label("%soverrun", sign.name), Constraint: prefix, Emulate: true})
				break
			}
			digit := isDigit(digits[d])
			stop := smt.And(prefix, smt.Not(digit))
			if d == 0 {
				// no conversion: value 0, end pointer at the start
				cases.add(Case{Label: label("%snone", sign.name), Constraint: stop, Ret: smt.Int(0), Stores: endAt(0)})
			} else {
				value := smt.Decimal{Digits: append([]smt.Byte{}, digits[:d]...), Negative: sign.negative}
				cases.add(Case{Label: label("%sdigits=%d", sign.name, d), Constraint: stop, Ret: value, Stores: endAt(sign.start + d)})
			}
			prefix = smt.And(prefix, digit)
			if smt.IsFalse(prefix) {
				break
			}
		}
	}
	return cases, nil
}
