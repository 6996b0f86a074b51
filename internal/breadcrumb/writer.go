package breadcrumb

import (
	"compress/gzip"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

type Writer struct {
	w       io.Writer
	closers []io.Closer
	written int
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Create truncates path and compresses by its .gz or .xz suffix.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	var w io.Writer = f
	closers := []io.Closer{f}
	switch {
	case strings.HasSuffix(path, ".gz"):
		zw := gzip.NewWriter(f)
		closers = append([]io.Closer{zw}, closers...)
		w = zw
	case strings.HasSuffix(path, ".xz"):
		xw, err := xz.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "xz %s", path)
		}
		closers = append([]io.Closer{xw}, closers...)
		w = xw
	}
	return &Writer{w: w, closers: closers}, nil
}

func (w *Writer) Write(f Frame) error {
	if _, err := w.w.Write(Encode(f)); err != nil {
		return errors.Wrapf(err, "write %s", f)
	}
	w.written++
	return nil
}

func (w *Writer) Written() int {
	return w.written
}

func (w *Writer) Close() error {
	var first error
	for _, c := range w.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	w.closers = nil
	return first
}
