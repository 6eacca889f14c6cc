package framer

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// Sink receives the payload of one frame at a time. Begin is called once per
// frame with the declared length, Write once per filled buffer, End once the
// frame is drained or abandoned.
//
// The slice passed to Write aliases a pooled buffer and must not be retained.
type Sink interface {
	Begin(length uint32) error
	Write(p []byte) error
	End() error
}

// Skipper is implemented by sinks that can consume a frame straight from the
// stream without copying it through a buffer.
type Skipper interface {
	Skip(r io.Reader, n int64) (int64, error)
}

// NewSink returns a FileSink for path, or a Discard sink when path is empty.
func NewSink(path string) Sink {
	if path == "" {
		return &Discard{}
	}
	return NewFileSink(path)
}

// Discard drops every byte and only counts them.
type Discard struct {
	n int64
}

func (d *Discard) Begin(uint32) error { return nil }

func (d *Discard) Write(p []byte) error {
	d.n += int64(len(p))
	return nil
}

func (d *Discard) End() error { return nil }

// Skip consumes n bytes from r.
func (d *Discard) Skip(r io.Reader, n int64) (int64, error) {
	var (
		skipped int64
		err     error
	)
	if dr, ok := r.(interface{ Discard(int) (int, error) }); ok && n <= int64(maxInt) {
		var k int
		k, err = dr.Discard(int(n))
		skipped = int64(k)
	} else {
		skipped, err = io.CopyN(io.Discard, r, n)
	}
	d.n += skipped
	if err == io.EOF && skipped < n {
		err = io.ErrUnexpectedEOF
	}
	return skipped, err
}

// Bytes returns the number of bytes discarded so far.
func (d *Discard) Bytes() int64 { return d.n }

const maxInt = int(^uint(0) >> 1)

// FileSink writes each frame to Path. The file is created or truncated at the
// start of every frame, so after a run it holds only the most recent frame.
type FileSink struct {
	Path string
	Perm os.FileMode

	f *os.File
	n int64
}

// NewFileSink returns a FileSink with 0644 permissions.
func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path, Perm: 0o644}
}

func (s *FileSink) Begin(uint32) error {
	if s.f != nil {
		_ = s.f.Close()
		s.f = nil
	}
	f, err := os.OpenFile(s.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, s.Perm)
	if err != nil {
		return errors.Wrap(err, "open destination")
	}
	s.f = f
	return nil
}

func (s *FileSink) Write(p []byte) error {
	if s.f == nil {
		return errors.New("framer: file sink written before Begin")
	}
	n, err := s.f.Write(p)
	s.n += int64(n)
	return errors.Wrap(err, "write destination")
}

func (s *FileSink) End() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return errors.Wrap(err, "close destination")
}

// Bytes returns the total number of bytes persisted across frames.
func (s *FileSink) Bytes() int64 { return s.n }
