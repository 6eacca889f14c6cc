package bench

import (
	"context"
	"net"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/framer"
)

// WarmupStrategies are exercised before measuring, without recording.
var WarmupStrategies = []string{"NEW_HEAP_8096", "NEW_DIRECT_8096", "NEW_ARRAY_8096"}

// Options configure the sending side.
type Options struct {
	Addr      string
	InputFile string
	SendBuf   int  // SO_SNDBUF hint, zero keeps the default
	NoDelay   bool // TCP_NODELAY
}

// Harness sends the input file as frames and records per-strategy timings.
type Harness struct {
	opts     Options
	recorder *Recorder
	logger   framer.Logger
}

func NewHarness(opts Options, recorder *Recorder, logger framer.Logger) *Harness {
	if logger == nil {
		logger = framer.NopLogger{}
	}
	return &Harness{opts: opts, recorder: recorder, logger: logger}
}

// Size returns the input file size.
func (h *Harness) Size() (int64, error) {
	fi, err := os.Stat(h.opts.InputFile)
	if err != nil {
		return 0, errors.Wrap(err, "bench: stat input")
	}
	return fi.Size(), nil
}

// Warmup sends n frames with each warm-up strategy and discards the timings.
func (h *Harness) Warmup(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	for _, name := range WarmupStrategies {
		s, err := framer.ParseStrategy(name)
		if err != nil {
			return err
		}
		if err := h.send(ctx, s, n, nil); err != nil {
			return errors.Wrapf(err, "bench: warmup %s", name)
		}
	}
	return nil
}

// Run replaces any previous stats for strategy with n measured transfers
// over a single connection.
func (h *Harness) Run(ctx context.Context, strategy framer.Strategy, n int) error {
	h.recorder.Reset(strategy.Name)
	err := h.send(ctx, strategy, n, func(tr framer.Transfer) {
		h.recorder.Record(strategy.Name, tr)
	})
	if err != nil {
		return errors.Wrapf(err, "bench: %s", strategy.Name)
	}
	return nil
}

// RunAll runs every strategy in turn, stopping at the first failure.
func (h *Harness) RunAll(ctx context.Context, strategies []framer.Strategy, n int) error {
	for _, s := range strategies {
		if err := h.Run(ctx, s, n); err != nil {
			return err
		}
	}
	return nil
}

func (h *Harness) send(ctx context.Context, strategy framer.Strategy, n int, record func(framer.Transfer)) error {
	pool, err := framer.NewPool(strategy, 1)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := h.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	w := framer.NewFrameWriter(pool)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tr, err := w.SendFile(conn, h.opts.InputFile)
		if err != nil {
			return err
		}
		if record != nil {
			record(tr)
		}
	}
	h.logger.Debug("strategy done", "strategy", strategy.Name, "frames", n)
	return nil
}

func (h *Harness) dial(ctx context.Context) (*net.TCPConn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", h.opts.Addr)
	if err != nil {
		return nil, err
	}
	conn := c.(*net.TCPConn)
	if h.opts.SendBuf > 0 {
		if err := conn.SetWriteBuffer(h.opts.SendBuf); err != nil {
			conn.Close()
			return nil, err
		}
	}
	if err := conn.SetNoDelay(h.opts.NoDelay); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// WithLocalServer starts a discarding receiver on a loopback port, runs fn
// against its address and shuts the receiver down once fn returns.
func WithLocalServer(ctx context.Context, logger framer.Logger, fn func(ctx context.Context, addr string) error) error {
	if logger == nil {
		logger = framer.NopLogger{}
	}

	srv, err := framer.New(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}, framer.ServerLoggerOption(logger))
	if err != nil {
		return err
	}
	defer srv.Close()

	pool, err := framer.NewPool(framer.DefaultStrategy, 1)
	if err != nil {
		return err
	}
	defer pool.Close()

	handler := framer.NewFrameHandler(
		func() framer.Sink { return &framer.Discard{} },
		framer.PoolOption(pool),
		framer.LoggerOption(logger),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.Serve(gctx, handler)
		if gctx.Err() != nil {
			return nil
		}
		return err
	})
	g.Go(func() error {
		defer cancel()
		return fn(gctx, srv.Addr().String())
	})
	return g.Wait()
}
