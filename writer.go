package framer

import (
	"io"
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
)

// ErrShortTransfer is returned when fewer than length+PrefixLen bytes reach
// the destination, or the source ends before length bytes.
var ErrShortTransfer = errors.New("short transfer")

// Transfer describes one frame sent by a FrameWriter.
type Transfer struct {
	Chunks    int           // writes issued to the destination
	Written   int64         // bytes written, prefix included
	ReadTime  time.Duration // time spent acquiring buffers and reading the source
	WriteTime time.Duration // time spent writing to the destination
}

// FrameWriter frames a payload and sends it in buffer-sized chunks. The first
// chunk carries the prefix followed by as much payload as fits.
type FrameWriter struct {
	pool *Pool
	now  func() time.Time
}

// NewFrameWriter returns a writer that stages chunks in buffers from pool.
func NewFrameWriter(pool *Pool) *FrameWriter {
	return &FrameWriter{pool: pool, now: time.Now}
}

// WriteFrame sends one frame of length payload bytes read from src.
// It issues ceil((length+PrefixLen)/capacity) writes; a zero length frame is
// a single write of the bare prefix.
func (w *FrameWriter) WriteFrame(dst io.Writer, src io.Reader, length uint32) (Transfer, error) {
	var (
		tr    Transfer
		total = int64(length) + PrefixLen
	)

	t1 := w.now()
	for tr.Written < total {
		buf, err := w.pool.Acquire()
		if err != nil {
			return tr, err
		}

		buf.Clear()
		if left := total - tr.Written; left < int64(buf.Capacity()) {
			buf.SetLimit(int(left))
		}
		if tr.Chunks == 0 {
			var prefix [PrefixLen]byte
			EncodeLength(prefix[:], length)
			buf.Put(prefix[:])
		}

		rerr := fillFull(buf, src)
		t2 := w.now()
		tr.ReadTime += t2.Sub(t1)

		var werr error
		if buf.Position() > 0 {
			var n int
			n, werr = dst.Write(buf.Bytes())
			tr.Written += int64(n)
			tr.Chunks++
		}
		t1 = w.now()
		tr.WriteTime += t1.Sub(t2)

		_ = w.pool.Release(buf)

		if werr != nil {
			return tr, errors.Wrap(werr, "write chunk")
		}
		if rerr != nil {
			if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
				return tr, errors.Wrapf(ErrShortTransfer, "source ended after %d of %d bytes", tr.Written-PrefixLen, length)
			}
			return tr, errors.Wrap(rerr, "read source")
		}
	}

	if tr.Written != total {
		return tr, errors.Wrapf(ErrShortTransfer, "wrote %d of %d bytes", tr.Written, total)
	}
	return tr, nil
}

// fillFull fills the buffer up to its limit from src.
func fillFull(buf *Buffer, src io.Reader) error {
	empty := 0
	for buf.HasRemaining() {
		n, err := buf.Fill(src)
		if err != nil {
			if err == io.EOF && !buf.HasRemaining() {
				return nil
			}
			return err
		}
		if n == 0 {
			empty++
			if empty >= maxConsecutiveEmptyReads {
				return io.ErrNoProgress
			}
			continue
		}
		empty = 0
	}
	return nil
}

// SendFile sends the contents of path as a single frame.
func (w *FrameWriter) SendFile(dst io.Writer, path string) (Transfer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Transfer{}, errors.Wrap(err, "open source")
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return Transfer{}, errors.Wrap(err, "stat source")
	}
	if fi.Size() > math.MaxUint32 {
		return Transfer{}, errors.Errorf("framer: source %s is %d bytes, over the 4GB frame limit", path, fi.Size())
	}
	return w.WriteFrame(dst, f, uint32(fi.Size()))
}
