package breadcrumb

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

// Reader pulls frames off a byte stream in order.
type Reader struct {
	r         *bufio.Reader
	closers   []io.Closer
	peeked    *Frame
	processed int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Open opens a log file, decompressing .gz and .xz logs transparently.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	var r io.Reader = f
	closers := []io.Closer{f}
	switch {
	case strings.HasSuffix(path, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "gzip %s", path)
		}
		closers = append([]io.Closer{zr}, closers...)
		r = zr
	case strings.HasSuffix(path, ".xz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "xz %s", path)
		}
		r = xr
	}
	rd := NewReader(r)
	rd.closers = closers
	return rd, nil
}

func (r *Reader) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}

func (r *Reader) read() (Frame, error) {
	var hdr [HeaderSize]byte
	n, err := io.ReadFull(r.r, hdr[:])
	if err == io.EOF {
		return Frame{}, io.EOF
	} else if err != nil {
		return Frame{}, errors.Wrapf(ErrCorruptRecord, "short header: %d bytes", n)
	}
	typ, flags, size := le.Uint32(hdr[0:]), le.Uint32(hdr[4:]), le.Uint32(hdr[8:])
	if size > MaxPayload {
		return Frame{}, errors.Wrapf(ErrCorruptRecord, "%s: size %d", TypeName(typ), size)
	}
	payload := make([]byte, size)
	if n, err := io.ReadFull(r.r, payload); err != nil {
		return Frame{}, errors.Wrapf(ErrCorruptRecord, "%s: payload truncated at %d of %d", TypeName(typ), n, size)
	}
	return Frame{Type: typ, Flags: flags, Payload: payload}, nil
}

// Next returns the next frame of any type, or io.EOF at a clean end of log.
func (r *Reader) Next() (Frame, error) {
	if r.peeked != nil {
		f := *r.peeked
		r.peeked = nil
		r.processed++
		return f, nil
	}
	f, err := r.read()
	if err != nil {
		return Frame{}, err
	}
	r.processed++
	return f, nil
}

// Peek returns the next frame without consuming it.
func (r *Reader) Peek() (Frame, error) {
	if r.peeked == nil {
		f, err := r.read()
		if err != nil {
			return Frame{}, err
		}
		r.peeked = &f
	}
	return *r.peeked, nil
}

// NextOfType skips forward to the next frame of type typ.
func (r *Reader) NextOfType(typ uint32) (Frame, error) {
	for {
		f, err := r.Next()
		if err != nil {
			return Frame{}, err
		}
		if f.Type == typ {
			return f, nil
		}
	}
}

// Skip discards up to n frames and returns how many were skipped.
func (r *Reader) Skip(n int) (int, error) {
	for i := 0; i < n; i++ {
		if _, err := r.Next(); err != nil {
			if err == io.EOF {
				return i, nil
			}
			return i, err
		}
	}
	return n, nil
}

// Processed counts the frames consumed so far.
func (r *Reader) Processed() int {
	return r.processed
}

// ScanTypes counts the frames of each type in a log.
func ScanTypes(path string) (map[uint32]int, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	counts := make(map[uint32]int)
	for {
		f, err := r.Next()
		if err == io.EOF {
			return counts, nil
		} else if err != nil {
			return counts, errors.Wrapf(err, "frame %d", r.Processed())
		}
		counts[f.Type]++
	}
}

func HasType(path string, typ uint32) (bool, error) {
	counts, err := ScanTypes(path)
	if err != nil {
		return false, err
	}
	return counts[typ] > 0, nil
}
