package breadcrumb

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

var le = binary.LittleEndian

func putHeader(dst []byte, typ, flags, size uint32) {
	le.PutUint32(dst[0:], typ)
	le.PutUint32(dst[4:], flags)
	le.PutUint32(dst[8:], size)
}

// Encode serializes f; Decode of the result yields f again. An empty payload
// decodes as nil.
func Encode(f Frame) []byte {
	buf := make([]byte, HeaderSize+len(f.Payload))
	putHeader(buf, f.Type, f.Flags, f.Size())
	copy(buf[HeaderSize:], f.Payload)
	return buf
}

// Decode parses the record at the head of b and returns it with the number of
// bytes consumed. It never reads past the declared size.
func Decode(b []byte) (Frame, int, error) {
	if len(b) < HeaderSize {
		return Frame{}, 0, errors.Wrapf(ErrCorruptRecord, "short header: %d bytes", len(b))
	}
	typ, flags, size := le.Uint32(b[0:]), le.Uint32(b[4:]), le.Uint32(b[8:])
	if size > MaxPayload || uint64(size) > uint64(len(b)-HeaderSize) {
		return Frame{}, 0, errors.Wrapf(ErrCorruptRecord, "%s: size %d exceeds %d available bytes",
			TypeName(typ), size, len(b)-HeaderSize)
	}
	var payload []byte
	if size > 0 {
		payload = make([]byte, size)
		copy(payload, b[HeaderSize:HeaderSize+int(size)])
	}
	return Frame{Type: typ, Flags: flags, Payload: payload}, HeaderSize + int(size), nil
}

// DecodeAll splits a buffer holding consecutive records.
func DecodeAll(b []byte) ([]Frame, error) {
	var frames []Frame
	for off := 0; off < len(b); {
		f, n, err := Decode(b[off:])
		if err != nil {
			return frames, errors.Wrapf(err, "record %d at offset %d", len(frames), off)
		}
		frames = append(frames, f)
		off += n
	}
	return frames, nil
}
