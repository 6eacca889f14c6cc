package framer

import (
	"time"
)

// Mode selects how a connection reads from the socket.
type Mode int

const (
	// ModeChannel reads the socket directly into pooled buffers.
	ModeChannel Mode = iota
	// ModeStream reads through a bufio.Reader (unless buffering is disabled)
	// and lets discard sinks skip payloads instead of copying them.
	ModeStream
)

func (m Mode) String() string {
	if m == ModeStream {
		return "stream"
	}
	return "channel"
}

// options holds the configuration for a connection.
type options struct {
	pool     *Pool
	sink     Sink
	logger   Logger
	observer Observer

	mode         Mode
	noBuffering  bool
	decodeLength LengthDecoder
	readTimeout  time.Duration // zero means block forever
	readBufSize  int           // bufio size in stream mode
}

// Option is a function that configures connection options.
type Option func(*options)

// PoolOption sets the buffer pool frames are read through.
// The pool is required.
func PoolOption(pool *Pool) Option {
	return func(o *options) {
		o.pool = pool
	}
}

// SinkOption sets where frame payloads go. Required.
func SinkOption(sink Sink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// ModeOption selects channel or stream reading.
func ModeOption(mode Mode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

// NoBufferingOption disables the bufio.Reader in stream mode.
func NoBufferingOption(disable bool) Option {
	return func(o *options) {
		o.noBuffering = disable
	}
}

// LegacyPrefixOption switches prefix decoding to DecodeLegacyLength.
func LegacyPrefixOption(legacy bool) Option {
	return func(o *options) {
		if legacy {
			o.decodeLength = DecodeLegacyLength
		} else {
			o.decodeLength = DecodeLength
		}
	}
}

// ReadTimeoutOption bounds how long the connection waits for each prefix and
// payload. Zero disables deadlines.
func ReadTimeoutOption(d time.Duration) Option {
	return func(o *options) {
		o.readTimeout = d
	}
}

// ReadBufferSizeOption sets the bufio.Reader size used in stream mode.
func ReadBufferSizeOption(size int) Option {
	return func(o *options) {
		o.readBufSize = size
	}
}

// ObserverOption sets the transfer event observer.
func ObserverOption(observer Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
