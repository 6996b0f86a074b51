package breadcrumb

import "github.com/pkg/errors"

const branchSize = 8

// Branch records which of Count successors a path followed where it forked.
type Branch struct {
	Index uint32
	Count uint32
}

func (b Branch) Frame() Frame {
	payload := make([]byte, branchSize)
	le.PutUint32(payload[0:], b.Index)
	le.PutUint32(payload[4:], b.Count)
	return Frame{Type: TypeBranch, Payload: payload}
}

func ParseBranch(f Frame) (Branch, error) {
	if f.Type != TypeBranch {
		return Branch{}, errors.Wrapf(ErrUnexpectedFrame, "want branch, got %s", TypeName(f.Type))
	}
	if len(f.Payload) != branchSize {
		return Branch{}, errors.Wrapf(ErrCorruptRecord, "branch payload %d bytes", len(f.Payload))
	}
	b := Branch{Index: le.Uint32(f.Payload[0:]), Count: le.Uint32(f.Payload[4:])}
	if b.Index >= b.Count {
		return Branch{}, errors.Wrapf(ErrCorruptRecord, "branch %d of %d", b.Index, b.Count)
	}
	return b, nil
}
