package smt

// Tri is the three-valued result of evaluating a formula under a partial assignment.
type Tri int

const (
	Unknown Tri = iota
	No
	Yes
)

func triOf(b bool) Tri {
	if b {
		return Yes
	}
	return No
}

// Eval evaluates b under a, returning Unknown when unassigned variables decide it.
func Eval(b Bool, a Assignment) Tri {
	switch v := b.(type) {
	case BoolVal:
		return triOf(bool(v))
	case Cmp:
		l, r := v.L.Resolve(a), v.R.Resolve(a)
		if l.symbolic || r.symbolic {
			if l.symbolic && r.symbolic && l.key == r.key {
				return triOf(v.Op.apply(0, 0))
			}
			return Unknown
		}
		return triOf(v.Op.apply(l.value, r.value))
	case AndExpr:
		result := Yes
		for _, x := range v {
			switch Eval(x, a) {
			case No:
				return No
			case Unknown:
				result = Unknown
			}
		}
		return result
	case OrExpr:
		result := No
		for _, x := range v {
			switch Eval(x, a) {
			case Yes:
				return Yes
			case Unknown:
				result = Unknown
			}
		}
		return result
	case NotExpr:
		switch Eval(v.X, a) {
		case Yes:
			return No
		case No:
			return Yes
		}
	}
	return Unknown
}

// Substitute rewrites b with every assigned variable replaced by its value.
func Substitute(b Bool, a Assignment) Bool {
	if len(a) == 0 {
		return b
	}
	switch v := b.(type) {
	case Cmp:
		return NewCmp(v.Op, v.L.Resolve(a), v.R.Resolve(a))
	case AndExpr:
		xs := make([]Bool, len(v))
		for i := range v {
			xs[i] = Substitute(v[i], a)
		}
		return And(xs...)
	case OrExpr:
		xs := make([]Bool, len(v))
		for i := range v {
			xs[i] = Substitute(v[i], a)
		}
		return Or(xs...)
	case NotExpr:
		return Not(Substitute(v.X, a))
	}
	return b
}

// Facts collects the variable bindings that the conjunction of constraints forces
// syntactically, i.e. top-level equalities between a variable and a constant.
func Facts(constraints []Bool) Assignment {
	facts := make(Assignment)
	var walk func(Bool)
	walk = func(b Bool) {
		switch v := b.(type) {
		case AndExpr:
			for _, x := range v {
				walk(x)
			}
		case Cmp:
			if v.Op != OpEq {
				return
			}
			if v.L.symbolic && !v.R.symbolic {
				facts[v.L.key] = v.R.value
			} else if v.R.symbolic && !v.L.symbolic {
				facts[v.R.key] = v.L.value
			}
		}
	}
	for _, c := range constraints {
		walk(c)
	}
	return facts
}

// Simplify folds b against the facts implied by path.
func Simplify(b Bool, path []Bool) Bool {
	return Substitute(b, Facts(path))
}

// Vars lists the distinct variables of the given formulas in a stable order.
func Vars(bools ...Bool) []VarKey {
	seen := make(map[VarKey]struct{})
	var walk func(Bool)
	walk = func(b Bool) {
		switch v := b.(type) {
		case Cmp:
			if v.L.symbolic {
				seen[v.L.key] = struct{}{}
			}
			if v.R.symbolic {
				seen[v.R.key] = struct{}{}
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
	for _, b := range bools {
		walk(b)
	}
	keys := make([]VarKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}
