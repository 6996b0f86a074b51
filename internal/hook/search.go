package hook

import "kcore/internal/smt"

// NotFound is the return value of a search that did not match.
const NotFound = 0

func memchrModel(c *Call) ([]Case, error) {
	var (
		s      = c.arg(0)
		needle = smt.NewByteVal(uint8(c.arg(1)))
		n      = int(c.arg(2))
	)
	if n < 0 || uint64(n) != c.arg(2) {
		return nil, nil
	}
	bs := c.scan(s, n, false)

	var cases caseList
	prefix := smt.True()
	for k := range bs {
		hit := smt.Eq(bs[k], needle)
		cases.add(Case{Label: label("found@%d", k), Constraint: smt.And(prefix, hit), Ret: smt.Int(int64(s) + int64(k))})
		prefix = smt.And(prefix, smt.Not(hit))
		if smt.IsFalse(prefix) {
			return cases, nil
		}
	}
	if len(bs) == n {
		cases.add(Case{Label: "notfound", Constraint: prefix, Ret: smt.Int(NotFound)})
	} else {
		cases.add(Case{Label: "overrun", Constraint: prefix, Emulate: true})
	}
	return cases, nil
}

func strchrModel(c *Call) ([]Case, error) {
	var (
		s = c.arg(0)
		b = uint8(c.arg(1))
	)
	bs := c.scan(s, c.limit, true)
	if b == 0 {
		return lengthCases(bs, -1, func(k int) smt.Value { return smt.Int(int64(s) + int64(k)) }), nil
	}

	var (
		cases    caseList
		needle   = smt.NewByteVal(b)
		notFound []smt.Bool
		prefix   = smt.True()
	)
	for k := range bs {
		hit := smt.Eq(bs[k], needle)
		end := smt.Eq(bs[k], zero)
		cases.add(Case{Label: label("found@%d", k), Constraint: smt.And(prefix, hit), Ret: smt.Int(int64(s) + int64(k))})
		notFound = append(notFound, smt.And(prefix, end))
		prefix = smt.And(prefix, smt.Not(hit), smt.Not(end))
		if smt.IsFalse(prefix) {
			break
		}
	}
	cases.add(Case{Label: "notfound", Constraint: smt.Or(notFound...), Ret: smt.Int(NotFound)})
	cases.add(Case{Label: "overrun", Constraint: prefix, Emulate: true})
	return cases, nil
}
