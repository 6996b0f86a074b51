package breadcrumb

import "github.com/pkg/errors"

// RegDump is a register file snapshot with a per-byte concrete mask. A non-zero
// mask byte marks the matching register byte as concrete.
type RegDump struct {
	Regs []byte
	Mask []byte
}

func NewRegDump(regs []byte) RegDump {
	mask := make([]byte, len(regs))
	for i := range mask {
		mask[i] = 0xff
	}
	return RegDump{Regs: append([]byte{}, regs...), Mask: mask}
}

// Frame encodes the dump as typ, which is TypeRegs or TypeStackLog.
func (d RegDump) Frame(typ uint32) Frame {
	payload := make([]byte, 0, len(d.Regs)*2)
	payload = append(payload, d.Regs...)
	payload = append(payload, d.Mask...)
	return Frame{Type: typ, Payload: payload}
}

func ParseRegs(f Frame) (RegDump, error) {
	if f.Type != TypeRegs && f.Type != TypeStackLog {
		return RegDump{}, errors.Wrapf(ErrUnexpectedFrame, "want regs, got %s", TypeName(f.Type))
	}
	if len(f.Payload)%2 != 0 {
		return RegDump{}, errors.Wrapf(ErrCorruptRecord, "%s payload %d bytes is odd", TypeName(f.Type), len(f.Payload))
	}
	half := len(f.Payload) / 2
	return RegDump{
		Regs: append([]byte{}, f.Payload[:half]...),
		Mask: append([]byte{}, f.Payload[half:]...),
	}, nil
}

// MemLog records a concrete snapshot of memory at Base.
type MemLog struct {
	Base uint64
	Data []byte
	Mask []byte
}

func (m MemLog) Frame() Frame {
	payload := make([]byte, 8, 8+len(m.Data)*2)
	le.PutUint64(payload, m.Base)
	payload = append(payload, m.Data...)
	payload = append(payload, m.Mask...)
	return Frame{Type: TypeMemLog, Payload: payload}
}

func ParseMemLog(f Frame) (MemLog, error) {
	if f.Type != TypeMemLog {
		return MemLog{}, errors.Wrapf(ErrUnexpectedFrame, "want memlog, got %s", TypeName(f.Type))
	}
	if len(f.Payload) < 8 || (len(f.Payload)-8)%2 != 0 {
		return MemLog{}, errors.Wrapf(ErrCorruptRecord, "memlog payload %d bytes", len(f.Payload))
	}
	half := (len(f.Payload) - 8) / 2
	return MemLog{
		Base: le.Uint64(f.Payload),
		Data: append([]byte{}, f.Payload[8:8+half]...),
		Mask: append([]byte{}, f.Payload[8+half:]...),
	}, nil
}
