// Package hook replaces the instruction-level emulation of well-known string and
// memory routines with models that split a path once per outcome class instead
// of once per byte.
package hook

import (
	"encoding/binary"
	"fmt"

	"kcore/internal/smt"
)

// Case is one outcome class of a modelled call. The cases a model returns are
// mutually exclusive and cover every input within the readable bounds.
type Case struct {
	Label      string
	Constraint smt.Bool
	Ret        smt.Value
	// Stores are concrete side effects, such as strtol's end pointer.
	Stores []Store
	// Emulate marks the residual class the model cannot decide, e.g. a string
	// running past readable memory. Such paths fall back to the interpreter.
	Emulate bool
}

type Store struct {
	Addr uint64
	Data []byte
}

func pointerStore(addr, value uint64) Store {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, value)
	return Store{Addr: addr, Data: data}
}

// Memory is the view of the address space models read from.
type Memory interface {
	Load(addr uint64) smt.Byte
	Mapped(addr uint64) bool
}

// Call is one invocation of a modelled function.
type Call struct {
	Name string
	Args []uint64

	mem   Memory
	limit int
	reads []smt.Byte
}

func NewCall(name string, args []uint64, mem Memory, limit int) *Call {
	return &Call{Name: name, Args: args, mem: mem, limit: limit}
}

func (c *Call) arg(i int) uint64 {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return 0
}

// scan reads at most max bytes at addr, stopping at unmapped memory and, when
// stopAtNul is set, after a concrete NUL byte.
func (c *Call) scan(addr uint64, max int, stopAtNul bool) []smt.Byte {
	if max > c.limit {
		max = c.limit
	}
	var result []smt.Byte
	for i := 0; i < max; i++ {
		a := addr + uint64(i)
		if !c.mem.Mapped(a) {
			break
		}
		b := c.mem.Load(a)
		result = append(result, b)
		if stopAtNul && !b.IsSymbolic() && b.Value() == 0 {
			break
		}
	}
	c.reads = append(c.reads, result...)
	return result
}

// Model computes the outcome classes of a call. A nil result means the call is
// not modelled with these arguments and runs under the interpreter.
type Model func(c *Call) ([]Case, error)

var zero = smt.NewByteVal(0)

type caseList []Case

func (cl *caseList) add(c Case) {
	if smt.IsFalse(c.Constraint) {
		return
	}
	*cl = append(*cl, c)
}

func label(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
