package framer

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
)

// Report summarizes one finished connection.
type Report struct {
	Addr    net.Addr
	Frames  int
	Bytes   int64
	Elapsed time.Duration
	Err     error
}

// FrameHandler is the standard Handler: it receives frames on every accepted
// connection, logs the outcome and never lets a connection failure escape.
type FrameHandler struct {
	newSink func() Sink
	opts    []Option
	logger  Logger
	onDone  func(Report)
}

// NewFrameHandler builds a handler that creates a Conn per connection with
// opts and a fresh sink from newSink. opts must carry a PoolOption.
func NewFrameHandler(newSink func() Sink, opts ...Option) *FrameHandler {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = defaultLogger()
	}
	return &FrameHandler{newSink: newSink, opts: opts, logger: logger}
}

// OnConnectionDone registers fn to be called after every connection.
func (h *FrameHandler) OnConnectionDone(fn func(Report)) *FrameHandler {
	h.onDone = fn
	return h
}

// Handle implements Handler.
func (h *FrameHandler) Handle(ctx context.Context, raw *net.TCPConn) {
	start := time.Now()
	report := Report{Addr: raw.RemoteAddr()}

	var sink Sink
	if h.newSink != nil {
		sink = h.newSink()
	}

	opts := make([]Option, 0, len(h.opts)+1)
	opts = append(opts, h.opts...)
	conn, err := NewConn(raw, append(opts, SinkOption(sink))...)
	if err != nil {
		_ = raw.Close()
		report.Err = err
		h.logger.Error("connection rejected", "addr", report.Addr, "error", err)
		h.done(report)
		return
	}

	report.Frames, report.Err = conn.Run(ctx)
	report.Bytes = conn.Bytes()
	report.Elapsed = time.Since(start)

	switch {
	case report.Err == nil:
		h.logger.Info("received objects", "addr", report.Addr,
			"count", report.Frames, "bytes", report.Bytes, "elapsed", report.Elapsed)
	case errors.Is(report.Err, context.Canceled):
		h.logger.Info("connection canceled", "addr", report.Addr, "count", report.Frames)
	default:
		h.logger.Error("connection aborted", "addr", report.Addr,
			"count", report.Frames, "error", report.Err)
	}
	h.done(report)
}

func (h *FrameHandler) done(r Report) {
	if h.onDone != nil {
		h.onDone(r)
	}
}
