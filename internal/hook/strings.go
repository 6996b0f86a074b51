package hook

import "kcore/internal/smt"

func strlenModel(c *Call) ([]Case, error) {
	bs := c.scan(c.arg(0), c.limit, true)
	return lengthCases(bs, -1, func(k int) smt.Value { return smt.Int(k) }), nil
}

func strnlenModel(c *Call) ([]Case, error) {
	n := int(c.arg(1))
	if n < 0 || uint64(n) != c.arg(1) {
		return nil, nil
	}
	bs := c.scan(c.arg(0), n, true)
	return lengthCases(bs, n, func(k int) smt.Value { return smt.Int(k) }), nil
}

// lengthCases splits on the position of the first NUL byte. With bound n >= 0
// a string without NUL in its first n bytes has length n.
func lengthCases(bs []smt.Byte, n int, ret func(k int) smt.Value) []Case {
	var cases caseList
	prefix := smt.True()
	for k := 0; k < len(bs); k++ {
		isNul := smt.Eq(bs[k], zero)
		cases.add(Case{Label: label("len=%d", k), Constraint: smt.And(prefix, isNul), Ret: ret(k)})
		prefix = smt.And(prefix, smt.Not(isNul))
		if smt.IsFalse(prefix) {
			return cases
		}
	}
	if n >= 0 && len(bs) == n {
		cases.add(Case{Label: label("len=%d", n), Constraint: prefix, Ret: ret(n)})
	} else {
		cases.add(Case{Label: "overrun", Constraint: prefix, Emulate: true})
	}
	return cases
}

func strcmpModel(c *Call) ([]Case, error) {
	a := c.scan(c.arg(0), c.limit, true)
	b := c.scan(c.arg(1), c.limit, true)
	return compareCases(a, b, true, -1), nil
}

func strncmpModel(c *Call) ([]Case, error) {
	n := int(c.arg(2))
	if n < 0 || uint64(n) != c.arg(2) {
		return nil, nil
	}
	a := c.scan(c.arg(0), n, true)
	b := c.scan(c.arg(1), n, true)
	return compareCases(a, b, true, n), nil
}

func memcmpModel(c *Call) ([]Case, error) {
	n := int(c.arg(2))
	if n < 0 || uint64(n) != c.arg(2) {
		return nil, nil
	}
	a := c.scan(c.arg(0), n, false)
	b := c.scan(c.arg(1), n, false)
	return compareCases(a, b, false, n), nil
}

// compareCases splits a byte-wise unsigned comparison into the -1, 0 and 1
// classes. Strings stop at the first common NUL when nul is set; n >= 0 bounds
// the number of bytes compared.
func compareCases(a, b []smt.Byte, nul bool, n int) []Case {
	m := len(a)
	if len(b) < m {
		m = len(b)
	}
	if n >= 0 && n < m {
		m = n
	}

	var (
		lt, eq, gt []smt.Bool
		prefix     = smt.True()
	)
	for i := 0; i < m; i++ {
		ai, bi := a[i], b[i]
		lt = append(lt, smt.And(prefix, smt.Ult(ai, bi)))
		gt = append(gt, smt.And(prefix, smt.Ugt(ai, bi)))
		same := smt.Eq(ai, bi)
		if nul {
			// equal bytes, so testing the concrete side folds best
			end := ai
			if !bi.IsSymbolic() {
				end = bi
			}
			eq = append(eq, smt.And(prefix, same, smt.Eq(end, zero)))
			prefix = smt.And(prefix, same, smt.Ne(end, zero))
		} else {
			prefix = smt.And(prefix, same)
		}
		if smt.IsFalse(prefix) {
			break
		}
	}

	var cases caseList
	cases.add(Case{Label: "lt", Constraint: smt.Or(lt...), Ret: smt.Int(-1)})
	if !smt.IsFalse(prefix) && n >= 0 && m == n {
		eq = append(eq, prefix)
		prefix = smt.False()
	}
	cases.add(Case{Label: "eq", Constraint: smt.Or(eq...), Ret: smt.Int(0)})
	cases.add(Case{Label: "gt", Constraint: smt.Or(gt...), Ret: smt.Int(1)})
	cases.add(Case{Label: "overrun", Constraint: prefix, Emulate: true})
	return cases
}
