package breadcrumb

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/pkg/errors"
)

// Log is the append-only breadcrumb sequence owned by one execution state.
type Log struct {
	frames []Frame
}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Append(f Frame) {
	l.frames = append(l.frames, f)
}

func (l *Log) Len() int {
	return len(l.frames)
}

// Frames returns the logged frames; callers must not modify them.
func (l *Log) Frames() []Frame {
	return l.frames
}

// Clone returns an independent log sharing the current prefix. The capacity is
// clipped so an append on either side never lands in the other's view.
func (l *Log) Clone() *Log {
	n := len(l.frames)
	return &Log{frames: l.frames[:n:n]}
}

func (l *Log) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for i, f := range l.frames {
		n, err := w.Write(Encode(f))
		total += int64(n)
		if err != nil {
			return total, errors.Wrapf(err, "frame %d", i)
		}
	}
	return total, nil
}

// Cursor returns a frame source reading the log from the start.
func (l *Log) Cursor() *Cursor {
	return &Cursor{frames: l.frames}
}

// FileName is the artifact name of the log of the index-th completed path.
func FileName(index int) string {
	return fmt.Sprintf("path%06d.crumbs", index)
}

// Save writes the log into dir under the path's sequential name.
func (l *Log) Save(dir string, index int) (string, error) {
	path := filepath.Join(dir, FileName(index))
	w, err := Create(path)
	if err != nil {
		return "", err
	}
	for _, f := range l.frames {
		if err := w.Write(f); err != nil {
			w.Close()
			return "", err
		}
	}
	return path, w.Close()
}

type Cursor struct {
	frames []Frame
	pos    int
}

func (c *Cursor) Next() (Frame, error) {
	if c.pos >= len(c.frames) {
		return Frame{}, io.EOF
	}
	f := c.frames[c.pos]
	c.pos++
	return f, nil
}
