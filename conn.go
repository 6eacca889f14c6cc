// Package framer moves length-prefixed binary frames over TCP.
//
// Every frame is a 4-byte little-endian length followed by that many payload
// bytes. The receiving side drains each frame through a buffer Pool into a
// Sink; the sending side frames a payload with a FrameWriter. How buffers are
// sized, allocated and shared is chosen by a Strategy and never changes the
// bytes on the wire.
package framer

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Errors returned by connection setup.
var (
	// ErrInvalidPool is returned when no buffer pool is provided.
	ErrInvalidPool = errors.New("invalid buffer pool")
	// ErrInvalidSink is returned when no sink is provided.
	ErrInvalidSink = errors.New("invalid sink")
)

// ErrConnectionClosed is returned when running a closed connection.
var ErrConnectionClosed = errors.New("connection closed")

// Default configuration values.
const (
	// defaultReadBufferSize matches the bufio default used by the stream variant.
	defaultReadBufferSize = 8192
)

// Conn receives frames from one TCP connection, strictly in arrival order.
type Conn struct {
	rawConn *net.TCPConn
	reader  io.Reader
	frames  *FrameReader
	logger  Logger

	opts options

	received atomic.Int64
	bytes    atomic.Int64
	closed   atomic.Bool
}

// NewConn creates a receiving connection around the given TCP connection.
// Returns an error if required options (pool, sink) are missing.
func NewConn(conn *net.TCPConn, opt ...Option) (*Conn, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}

	if err := checkOptions(&opts); err != nil {
		return nil, err
	}

	return newConnWithOptions(conn, opts), nil
}

// checkOptions validates and sets default values for connection options.
func checkOptions(opts *options) error {
	if opts.pool == nil {
		return ErrInvalidPool
	}

	if opts.sink == nil {
		return ErrInvalidSink
	}

	if opts.decodeLength == nil {
		opts.decodeLength = DecodeLength
	}

	if opts.readBufSize <= 0 {
		opts.readBufSize = defaultReadBufferSize
	}

	if opts.observer == nil {
		opts.observer = nopObserver{}
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	return nil
}

func newConnWithOptions(c *net.TCPConn, opts options) *Conn {
	var r io.Reader = c
	if opts.mode == ModeStream && !opts.noBuffering {
		r = bufio.NewReaderSize(c, opts.readBufSize)
	}

	return &Conn{
		rawConn: c,
		reader:  r,
		frames: NewFrameReader(opts.pool,
			ReaderSkipOption(opts.mode == ModeStream),
			ReaderObserverOption(opts.observer)),
		logger: opts.logger,
		opts:   opts,
	}
}

// Run reads frames until the peer closes the connection, an I/O error occurs
// or ctx is canceled. It returns the number of complete frames received.
//
// A connection that ends on a frame boundary, or part way through a length
// prefix, ends cleanly with a nil error. Anything else, including a peer that
// hangs up mid-payload, is returned as an error. The connection is closed when
// Run returns.
func (c *Conn) Run(ctx context.Context) (int, error) {
	if c.closed.Load() {
		return 0, ErrConnectionClosed
	}

	c.logger.Debug("connection established", "addr", c.Addr(),
		"mode", c.opts.mode.String(),
		"strategy", c.opts.pool.Strategy().Name,
		"no_buffering", c.opts.noBuffering)
	c.opts.observer.ConnectionOpened()

	stop := context.AfterFunc(ctx, func() {
		_ = c.rawConn.Close()
	})
	defer stop()

	err := c.readLoop()
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		err = ctxErr
	}
	c.Close()

	frames := int(c.received.Load())
	c.opts.observer.ConnectionClosed(frames, err)
	return frames, err
}

// readLoop alternates between reading a prefix and draining its frame.
func (c *Conn) readLoop() error {
	var prefix [PrefixLen]byte
	for {
		c.setDeadline()
		if _, err := io.ReadFull(c.reader, prefix[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return errors.Wrap(err, "read prefix")
		}

		length := c.opts.decodeLength(prefix[:])
		if err := c.transfer(length); err != nil {
			return err
		}
		c.received.Add(1)
		c.opts.observer.FrameReceived(length)
	}
}

func (c *Conn) transfer(length uint32) error {
	sink := c.opts.sink
	if err := sink.Begin(length); err != nil {
		return err
	}

	c.setDeadline()
	n, err := c.frames.ReadFrame(c.reader, length, sink)
	c.bytes.Add(n)

	if endErr := sink.End(); err == nil {
		err = endErr
	}
	return err
}

func (c *Conn) setDeadline() {
	if c.opts.readTimeout > 0 {
		_ = c.rawConn.SetReadDeadline(time.Now().Add(c.opts.readTimeout))
	}
}

// Received returns the number of frames fully drained so far.
func (c *Conn) Received() int { return int(c.received.Load()) }

// Bytes returns the number of payload bytes consumed.
func (c *Conn) Bytes() int64 { return c.bytes.Load() }

// Close closes the underlying TCP connection. Safe to call multiple times.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.rawConn.Close()
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// Addr returns the remote address of the connection.
func (c *Conn) Addr() net.Addr {
	return c.rawConn.RemoteAddr()
}
