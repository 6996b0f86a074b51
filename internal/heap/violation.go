package heap

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

type Kind int

const (
	DoubleAllocation Kind = iota + 1
	InvalidFree
	DoubleFree
	UseAfterFree
	OutOfBounds
	Leak
)

var kindNames = map[Kind]string{
	DoubleAllocation: "DoubleAllocation",
	InvalidFree:      "InvalidFree",
	DoubleFree:       "DoubleFree",
	UseAfterFree:     "UseAfterFree",
	OutOfBounds:      "OutOfBounds",
	Leak:             "Leak",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Violation is a heap-safety error detected by the shadow. Its message is what
// the classifier sees.
type Violation struct {
	Kind  Kind
	Addr  uint64
	Len   uint64
	Write bool
	// Region is the allocation the violation was attributed to, if any.
	Region *Region
}

func accessVerb(write bool) string {
	if write {
		return "write"
	}
	return "read"
}

func (v *Violation) Error() string {
	switch v.Kind {
	case DoubleAllocation:
		return fmt.Sprintf("heap error: allocation of %d bytes at %#x overlaps live allocation at %#x",
			v.Len, v.Addr, v.Region.Base)
	case InvalidFree:
		if v.Region != nil {
			return fmt.Sprintf("heap error: free of %#x not at start of buffer %#x", v.Addr, v.Region.Base)
		}
		return fmt.Sprintf("heap error: free of %#x not on the heap", v.Addr)
	case DoubleFree:
		return fmt.Sprintf("heap error: double free of %#x", v.Addr)
	case UseAfterFree:
		return fmt.Sprintf("heap error: use after free, %s of %d bytes at %#x in freed buffer %#x",
			accessVerb(v.Write), v.Len, v.Addr, v.Region.Base)
	case OutOfBounds:
		return fmt.Sprintf("heap error: out of bounds %s of %d bytes at %#x near buffer %s",
			accessVerb(v.Write), v.Len, v.Addr, v.Region)
	case Leak:
		return fmt.Sprintf("heap error: memory leak of %s at %#x", humanize.Bytes(v.Len), v.Addr)
	}
	return fmt.Sprintf("heap error: %s at %#x", v.Kind, v.Addr)
}
