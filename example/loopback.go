package main

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Zereker/framer"
)

// counter is a sink that reports every frame it sees.
type counter struct {
	connID int64
	length uint32
	n      int
}

func (c *counter) Begin(length uint32) error {
	c.length, c.n = length, 0
	return nil
}

func (c *counter) Write(p []byte) error {
	c.n += len(p)
	return nil
}

func (c *counter) End() error {
	slog.Info("frame received", "connID", c.connID, "declared", c.length, "read", c.n)
	return nil
}

type Server struct {
	connID int64
	pool   *framer.Pool

	sync.RWMutex
	connections map[int64]*framer.Conn
}

func newHandler(pool *framer.Pool) *Server {
	return &Server{pool: pool, connections: make(map[int64]*framer.Conn)}
}

func (s *Server) Handle(ctx context.Context, conn *net.TCPConn) {
	connID := atomic.AddInt64(&s.connID, 1)

	newConn, err := framer.NewConn(conn,
		framer.PoolOption(s.pool),
		framer.SinkOption(&counter{connID: connID}),
	)
	if err != nil {
		slog.Error("failed to create conn", "error", err)
		conn.Close()
		return
	}

	s.addConn(connID, newConn)
	defer s.deleteConn(connID)

	n, err := newConn.Run(ctx)
	if err != nil {
		slog.Error("connection error", "connID", connID, "error", err)
		return
	}
	slog.Info("connection done", "connID", connID, "frames", n, "bytes", newConn.Bytes())
}

func (s *Server) addConn(connID int64, conn *framer.Conn) {
	s.Lock()
	defer s.Unlock()

	slog.Info("add new conn", "connID", connID, "addr", conn.Addr())
	s.connections[connID] = conn
}

func (s *Server) deleteConn(connID int64) {
	s.Lock()
	defer s.Unlock()

	delete(s.connections, connID)
}

// send frames a few payloads of growing size to addr.
func send(addr net.Addr) error {
	conn, err := net.DialTCP("tcp", nil, addr.(*net.TCPAddr))
	if err != nil {
		return err
	}
	defer conn.Close()

	pool, err := framer.NewPool(framer.DefaultStrategy, 1)
	if err != nil {
		return err
	}
	defer pool.Close()

	w := framer.NewFrameWriter(pool)
	for _, size := range []int{0, 10, 100000} {
		payload := bytes.Repeat([]byte{'x'}, size)
		tr, err := w.WriteFrame(conn, bytes.NewReader(payload), uint32(size))
		if err != nil {
			return err
		}
		slog.Info("frame sent", "size", size, "chunks", tr.Chunks, "write_time", tr.WriteTime)
	}
	return nil
}

func main() {
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:12345")
	if err != nil {
		panic(err)
	}

	server, err := framer.New(addr)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		return
	}

	pool, err := framer.NewPool(framer.DefaultStrategy, 1)
	if err != nil {
		slog.Error("failed to create pool", "error", err)
		return
	}
	defer pool.Close()

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		time.Sleep(100 * time.Millisecond)
		if err := send(server.Addr()); err != nil {
			slog.Error("send failed", "error", err)
		}
	}()

	slog.Info("server start", "addr", addr.String())
	if err := server.Serve(ctx, newHandler(pool)); err != nil && ctx.Err() == nil {
		slog.Error("server error", "error", err)
	}
}
