package hook

import (
	"context"
	"encoding/binary"

	"kcore/internal/smt"
	"kcore/internal/state"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/twmb/murmur3"
)

const DefaultScanLimit = 64

// aliases maps each modelled function to the symbols libc exports it under.
var aliases = map[string][]string{
	"strlen":  {"__GI_strlen", "__strlen_sse2", "__strlen_sse42", "__strlen_avx2"},
	"strnlen": {"__GI_strnlen", "__strnlen_sse2", "__strnlen_avx2"},
	"strcmp":  {"__GI_strcmp", "__GI___strcmp_ssse3", "__strcmp_sse2", "__strcmp_sse42", "__strcmp_avx2"},
	"strncmp": {"__GI_strncmp", "__strncmp_sse2", "__strncmp_sse42", "__strncmp_avx2"},
	"memcmp":  {"__GI_memcmp", "__memcmp_sse2", "__memcmp_sse4_1", "__memcmp_avx2_movbe"},
	"memchr":  {"__GI_memchr", "__memchr_sse2", "__memchr_avx2"},
	"strchr":  {"__GI_strchr", "__strchr_sse2", "__strchr_avx2", "index"},
	"strtol":  {"__GI_strtol", "strtoll", "__GI_strtoll", "__strtol_internal", "__GI___strtol_internal"},
}

// Successor is one feasible outcome of a split.
type Successor struct {
	State *state.State
	Case  Case
}

type Result struct {
	// FallThrough means the call is not modelled and the interpreter runs it.
	FallThrough bool
	Successors  []Successor
	// Pruned counts cases discarded as infeasible on the path.
	Pruned int
	// SolverCalls counts cases that needed the solver.
	SolverCalls int
	Memoized    bool
}

// Manager owns the allow-list of modelled functions and the addresses they are bound to.
type Manager struct {
	models    map[string]Model
	canonical map[string]string
	bound     map[uint64]string
	solver    smt.Solver
	scanLimit int
}

func NewManager(solver smt.Solver, scanLimit int) *Manager {
	m := &Manager{
		models:    make(map[string]Model),
		canonical: make(map[string]string),
		bound:     make(map[uint64]string),
		solver:    solver,
		scanLimit: scanLimit,
	}
	m.Register("strlen", strlenModel, aliases["strlen"]...)
	m.Register("strnlen", strnlenModel, aliases["strnlen"]...)
	m.Register("strcmp", strcmpModel, aliases["strcmp"]...)
	m.Register("strncmp", strncmpModel, aliases["strncmp"]...)
	m.Register("memcmp", memcmpModel, aliases["memcmp"]...)
	m.Register("memchr", memchrModel, aliases["memchr"]...)
	m.Register("strchr", strchrModel, aliases["strchr"]...)
	m.Register("strtol", strtolModel, aliases["strtol"]...)
	return m
}

func (m *Manager) Register(name string, model Model, symbols ...string) {
	m.models[name] = model
	m.canonical[name] = name
	for _, sym := range symbols {
		m.canonical[sym] = name
	}
}

// Bind attaches the model for symbol to addr. Symbols outside the allow-list are ignored.
func (m *Manager) Bind(addr uint64, symbol string) bool {
	name, ok := m.canonical[symbol]
	if !ok {
		return false
	}
	m.bound[addr] = name
	log.Debugf("hook: %s bound at %#x as %s", symbol, addr, name)
	return true
}

// BindSymbols binds every allow-listed symbol of a symbol table and returns the count.
func (m *Manager) BindSymbols(symbols map[string]uint64) int {
	n := 0
	for sym, addr := range symbols {
		if m.Bind(addr, sym) {
			n++
		}
	}
	return n
}

// Lookup returns the modelled function bound at addr.
func (m *Manager) Lookup(addr uint64) (string, bool) {
	name, ok := m.bound[addr]
	return name, ok
}

func (m *Manager) Models() []string {
	names := make([]string, 0, len(m.models))
	for name := range m.models {
		names = append(names, name)
	}
	return names
}

func fingerprint(c *Call) uint64 {
	buf := make([]byte, 0, 64)
	buf = append(buf, c.Name...)
	for _, a := range c.Args {
		buf = binary.LittleEndian.AppendUint64(buf, a)
	}
	for _, b := range c.reads {
		buf = append(buf, b.String()...)
		buf = append(buf, ';')
	}
	return murmur3.Sum64(buf)
}

// Split runs the model of name on st and returns the feasible successors. The
// first successor reuses st; the others are forks of it. Each successor has its
// case constraint conjoined and its stores applied; returning the value to the
// caller is left to the interpreter.
func (m *Manager) Split(ctx context.Context, st *state.State, name string, args []uint64) (*Result, error) {
	model, ok := m.models[m.canonical[name]]
	if !ok {
		return &Result{FallThrough: true}, nil
	}
	call := NewCall(m.canonical[name], args, st.Memory, m.scanLimit)
	cases, err := model(call)
	if err != nil {
		return nil, errors.Wrapf(err, "model %s", name)
	}
	if len(cases) == 0 || (len(cases) == 1 && smt.IsTrue(cases[0].Constraint)) {
		return &Result{FallThrough: true}, nil
	}

	key := fingerprint(call)
	if e, ok := st.Memo(key); ok && e.Case < len(cases) && e.Func == call.Name {
		log.Debugf("hook: %s on %s reuses case %s", call.Name, st, cases[e.Case].Label)
		return &Result{Successors: []Successor{{State: st, Case: cases[e.Case]}}, Memoized: true}, nil
	}

	var (
		result = &Result{}
		path   = st.Constraints.GetConstraints()
		facts  = smt.Facts(path)
		chosen []int
	)
	for i, c := range cases {
		folded := smt.Substitute(c.Constraint, facts)
		if smt.IsFalse(folded) {
			result.Pruned++
			log.Debugf("hook: %s case %s contradicts path prefix", call.Name, c.Label)
			continue
		}
		if !smt.IsTrue(folded) {
			result.SolverCalls++
			sat, err := m.solver.IsSatisfiable(ctx, st.Constraints.With(c.Constraint))
			if err != nil {
				return nil, errors.Wrapf(err, "%s case %s", call.Name, c.Label)
			}
			if !sat {
				result.Pruned++
				log.Debugf("hook: %s case %s infeasible", call.Name, c.Label)
				continue
			}
		}
		chosen = append(chosen, i)
	}

	for n, i := range chosen {
		succ := st
		if n < len(chosen)-1 {
			succ = st.Fork()
		}
		c := cases[i]
		succ.Constraints.AppendBool(c.Constraint)
		for _, store := range c.Stores {
			succ.Memory.WriteConcrete(store.Addr, store.Data)
		}
		if !c.Emulate {
			succ.Remember(key, state.MemoEntry{Func: call.Name, Case: i, Ret: c.Ret, Constraint: c.Constraint})
		}
		result.Successors = append(result.Successors, Successor{State: succ, Case: c})
	}
	// st itself is the last successor; keep it first for callers
	if len(result.Successors) > 1 {
		last := len(result.Successors) - 1
		result.Successors[0], result.Successors[last] = result.Successors[last], result.Successors[0]
	}
	log.Debugf("hook: %s on %s: %d cases, %d successors, %d pruned", call.Name, st, len(cases), len(result.Successors), result.Pruned)
	return result, nil
}
