package framer

import (
	"io"

	"github.com/pkg/errors"
)

// maxConsecutiveEmptyReads bounds fill passes that make no progress before
// the reader gives up with io.ErrNoProgress.
const maxConsecutiveEmptyReads = 100

// FrameReader drains declared-length frames from a stream into a Sink.
// A FrameReader holds no per-frame state and may be reused for consecutive
// frames; it is safe for concurrent use only if its pool has enough slots.
type FrameReader struct {
	pool     *Pool
	skip     bool
	observer Observer
}

// ReaderOption configures a FrameReader.
type ReaderOption func(*FrameReader)

// ReaderSkipOption lets sinks implementing Skipper consume frames directly
// from the stream, bypassing the pool.
func ReaderSkipOption(skip bool) ReaderOption {
	return func(fr *FrameReader) {
		fr.skip = skip
	}
}

// ReaderObserverOption reports each buffer fill to o.
func ReaderObserverOption(o Observer) ReaderOption {
	return func(fr *FrameReader) {
		if o != nil {
			fr.observer = o
		}
	}
}

// NewFrameReader returns a reader that fills buffers from pool.
func NewFrameReader(pool *Pool, opts ...ReaderOption) *FrameReader {
	fr := &FrameReader{pool: pool, observer: nopObserver{}}
	for _, o := range opts {
		o(fr)
	}
	return fr
}

// ReadFrame consumes exactly length bytes from r and hands them to sink, one
// Write per buffer fill. Reads are coalesced until a buffer is full or the
// stream has nothing more to give in the current pass. A zero length frame
// returns immediately. Begin and End are the caller's responsibility.
//
// It returns the number of payload bytes consumed. If the stream ends before
// the frame does, the bytes already read are still delivered and
// io.ErrUnexpectedEOF is returned.
func (fr *FrameReader) ReadFrame(r io.Reader, length uint32, sink Sink) (int64, error) {
	if length == 0 {
		return 0, nil
	}

	if fr.skip {
		if sk, ok := sink.(Skipper); ok {
			n, err := sk.Skip(r, int64(length))
			return n, errors.Wrap(err, "skip payload")
		}
	}

	var (
		remaining = int64(length)
		consumed  int64
		empty     int
	)
	for remaining > 0 {
		n, err := fr.fill(r, remaining, sink)
		consumed += int64(n)
		remaining -= int64(n)

		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return consumed, errors.Wrapf(err, "read payload (%d of %d bytes)", consumed, length)
		}

		if n == 0 {
			empty++
			if empty >= maxConsecutiveEmptyReads {
				return consumed, errors.Wrap(io.ErrNoProgress, "read payload")
			}
			continue
		}
		empty = 0
	}
	return consumed, nil
}

// fill runs a single acquire, fill, hand-off, release cycle.
func (fr *FrameReader) fill(r io.Reader, remaining int64, sink Sink) (int, error) {
	buf, err := fr.pool.Acquire()
	if err != nil {
		return 0, err
	}
	defer fr.pool.Release(buf)

	buf.Clear()
	if remaining < int64(buf.Capacity()) {
		buf.SetLimit(int(remaining))
	}

	n, rerr := buf.Fill(r)
	if n > 0 {
		fr.observer.Fill(n)
		if err := sink.Write(buf.Bytes()); err != nil {
			return n, err
		}
	}
	return n, rerr
}
