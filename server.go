package framer

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Handler is the interface for handling incoming TCP connections.
type Handler interface {
	// Handle is called for each accepted connection and owns it until it
	// returns. ctx is canceled when the server shuts down.
	Handle(ctx context.Context, conn *net.TCPConn)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, conn *net.TCPConn)

// Handle calls f(ctx, conn).
func (f HandlerFunc) Handle(ctx context.Context, conn *net.TCPConn) { f(ctx, conn) }

// Server accepts TCP connections and hands them to a Handler through a
// Scheduler. The default scheduler is Sequential: one connection is served
// to completion before the next one is accepted.
type Server struct {
	listener      *net.TCPListener
	logger        Logger
	scheduler     Scheduler
	receiveBuffer int
	listenerTuned bool

	mu       sync.Mutex
	shutdown bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerSchedulerOption sets how accepted connections are run.
func ServerSchedulerOption(scheduler Scheduler) ServerOption {
	return func(s *Server) {
		s.scheduler = scheduler
	}
}

// ServerReceiveBufferOption sets the SO_RCVBUF hint applied to the listening
// socket. Zero leaves the system default.
func ServerReceiveBufferOption(size int) ServerOption {
	return func(s *Server) {
		s.receiveBuffer = size
	}
}

// New creates a new TCP server bound to the specified address.
// Returns an error if the address cannot be bound.
func New(addr *net.TCPAddr, opts ...ServerOption) (*Server, error) {
	s := &Server{
		logger:    slog.Default(),
		scheduler: Sequential(),
	}

	for _, opt := range opts {
		opt(s)
	}

	var lc net.ListenConfig
	if s.receiveBuffer > 0 {
		lc.Control = receiveBufferControl(s.receiveBuffer)
		s.listenerTuned = lc.Control != nil
	}

	l, err := lc.Listen(context.Background(), addr.Network(), addr.String())
	if err != nil {
		return nil, err
	}
	s.listener = l.(*net.TCPListener)

	return s, nil
}

// Serve accepts connections and dispatches them to the handler until ctx is
// canceled or accepting fails. Errors inside a connection never stop the
// loop; they are the handler's to report. Serve waits for running handlers
// before returning.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("server started", "addr", s.listener.Addr(),
		"slots", s.scheduler.Slots())
	defer s.scheduler.Wait()

	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		// Set a deadline to unblock Accept
		_ = s.listener.SetDeadline(time.Now())
	})
	defer stop()

	for {
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			s.mu.Lock()
			isShutdown := s.shutdown
			s.mu.Unlock()

			if isShutdown {
				s.logger.Info("server stopped", "addr", s.listener.Addr())
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return nil
			}

			// Check if it's a temporary error
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error("accept error", "error", err)
			return err
		}

		s.logger.Debug("accepted connection", "remote_addr", conn.RemoteAddr())
		_ = conn.SetNoDelay(true)
		if s.receiveBuffer > 0 && !s.listenerTuned {
			_ = conn.SetReadBuffer(s.receiveBuffer)
		}

		s.scheduler.Go(ctx, func(ctx context.Context) {
			handler.Handle(ctx, conn)
		})
	}
}

// Close stops the server by closing the underlying listener.
// Any blocked Accept calls will return with an error.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	return s.listener.Close()
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
