package framer

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"
)

// mockHandler implements Handler interface for testing
type mockHandler struct {
	mu       sync.Mutex
	conns    []*net.TCPConn
	handleCh chan *net.TCPConn
}

func newMockHandler() *mockHandler {
	return &mockHandler{
		conns:    make([]*net.TCPConn, 0),
		handleCh: make(chan *net.TCPConn, 10),
	}
}

func (h *mockHandler) Handle(_ context.Context, conn *net.TCPConn) {
	h.mu.Lock()
	h.conns = append(h.conns, conn)
	h.mu.Unlock()

	select {
	case h.handleCh <- conn:
	default:
	}
}

func (h *mockHandler) getConns() []*net.TCPConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns
}

func TestNew(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}
	server, err := New(addr)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer server.Close()

	if server.listener == nil {
		t.Error("listener is nil")
	}
}

func TestNew_InvalidAddr(t *testing.T) {
	// First create a listener to occupy a port
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}
	server1, err := New(addr)
	if err != nil {
		t.Fatalf("first New failed: %v", err)
	}
	defer server1.Close()

	// Try to listen on the same port - should fail
	occupiedAddr := server1.listener.Addr().(*net.TCPAddr)
	_, err = New(occupiedAddr)
	if err == nil {
		t.Error("expected error for occupied port")
	}
}

func TestServer_Close(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}
	server, err := New(addr)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	err = server.Close()
	if err != nil {
		t.Errorf("Close failed: %v", err)
	}

	// Verify listener is closed by trying to accept
	_, err = server.listener.AcceptTCP()
	if err == nil {
		t.Error("expected error after close")
	}
}

func TestServer_Addr(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}
	server, err := New(addr)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer server.Close()

	serverAddr := server.Addr()
	if serverAddr == nil {
		t.Error("Addr returned nil")
	}
}

func TestServer_Serve(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}
	server, err := New(addr)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	handler := newMockHandler()
	ctx, cancel := context.WithCancel(context.Background())

	// Start serving in goroutine
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, handler)
	}()

	// Give server time to start
	time.Sleep(time.Millisecond * 50)

	// Connect a client
	clientConn, err := net.DialTCP("tcp", nil, server.listener.Addr().(*net.TCPAddr))
	if err != nil {
		t.Fatalf("client dial failed: %v", err)
	}
	defer clientConn.Close()

	// Wait for handler to receive the connection
	select {
	case conn := <-handler.handleCh:
		if conn != nil {
			conn.Close()
		} else {
			t.Error("handler received nil connection")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for handler")
	}

	// Cancel context to stop server
	cancel()

	// Wait for Serve to return
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for Serve to return")
	}
}

func TestServer_Serve_MultipleConnections(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}
	server, err := New(addr)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	handler := newMockHandler()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start serving in goroutine
	go server.Serve(ctx, handler)

	// Give server time to start
	time.Sleep(time.Millisecond * 50)

	// Connect multiple clients
	numClients := 5
	clients := make([]*net.TCPConn, numClients)
	for i := 0; i < numClients; i++ {
		clientConn, err := net.DialTCP("tcp", nil, server.listener.Addr().(*net.TCPAddr))
		if err != nil {
			t.Fatalf("client %d dial failed: %v", i, err)
		}
		clients[i] = clientConn
	}

	// Wait for all handlers to receive connections
	for i := 0; i < numClients; i++ {
		select {
		case conn := <-handler.handleCh:
			if conn == nil {
				t.Errorf("handler %d received nil connection", i)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout waiting for handler %d", i)
		}
	}

	// Close all client connections
	for _, conn := range clients {
		conn.Close()
	}

	// Verify handler received all connections
	conns := handler.getConns()
	if len(conns) != numClients {
		t.Errorf("handler received %d connections, want %d", len(conns), numClients)
	}

	// Close handler connections
	for _, conn := range conns {
		conn.Close()
	}
}

func TestServer_Serve_ContextCanceled(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}
	server, err := New(addr)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	handler := newMockHandler()
	ctx, cancel := context.WithCancel(context.Background())

	// Start serving in goroutine
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, handler)
	}()

	// Give server time to start
	time.Sleep(time.Millisecond * 50)

	// Cancel context
	cancel()

	// Wait for Serve to return
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for Serve to return")
	}
}

func TestServer_ReceiveBufferOption(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}
	server, err := New(addr, ServerReceiveBufferOption(64*1024))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer server.Close()

	if server.receiveBuffer != 64*1024 {
		t.Errorf("receiveBuffer = %d, want %d", server.receiveBuffer, 64*1024)
	}
}

// startFrameServer serves a FrameHandler and collects one report per connection.
func startFrameServer(t *testing.T, scheduler Scheduler, newSink func() Sink, slots int) (*Server, <-chan Report, context.CancelFunc) {
	t.Helper()

	server, err := New(&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0},
		ServerLoggerOption(NopLogger{}),
		ServerSchedulerOption(scheduler),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	strategy, _ := ParseStrategy("SHARE_HEAP_8096")
	pool, err := NewPool(strategy, slots)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	reports := make(chan Report, 16)
	handler := NewFrameHandler(newSink, PoolOption(pool), LoggerOption(NopLogger{})).
		OnConnectionDone(func(r Report) { reports <- r })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.Serve(ctx, handler)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		server.Close()
		pool.Close()
	})
	return server, reports, cancel
}

func sendFrames(t *testing.T, addr net.Addr, payloads ...[]byte) {
	t.Helper()
	if err := writeFrames(addr, payloads...); err != nil {
		t.Fatalf("send frames: %v", err)
	}
}

func writeFrames(addr net.Addr, payloads ...[]byte) error {
	conn, err := net.DialTCP("tcp", nil, addr.(*net.TCPAddr))
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, p := range payloads {
		if _, err := conn.Write(frameBytes(p)); err != nil {
			return err
		}
	}
	return nil
}

func waitReport(t *testing.T, reports <-chan Report) Report {
	t.Helper()
	select {
	case r := <-reports:
		return r
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for connection report")
		return Report{}
	}
}

func TestServer_FrameHandler_Sequential(t *testing.T) {
	server, reports, _ := startFrameServer(t, Sequential(), func() Sink { return &Discard{} }, 1)

	// connections are served one after another with a single shared buffer
	sendFrames(t, server.Addr(), bytes.Repeat([]byte{1}, 10000), nil)
	sendFrames(t, server.Addr(), []byte("abc"))

	r1 := waitReport(t, reports)
	r2 := waitReport(t, reports)

	if r1.Err != nil || r1.Frames != 2 || r1.Bytes != 10000 {
		t.Errorf("first report = %+v, want 2 frames of 10000 bytes", r1)
	}
	if r2.Err != nil || r2.Frames != 1 || r2.Bytes != 3 {
		t.Errorf("second report = %+v, want 1 frame of 3 bytes", r2)
	}
}

func TestServer_FrameHandler_Concurrent(t *testing.T) {
	server, reports, _ := startFrameServer(t, Concurrent(4), func() Sink { return &Discard{} }, 4)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := writeFrames(server.Addr(), bytes.Repeat([]byte{2}, 20000), []byte("x")); err != nil {
				t.Errorf("send frames: %v", err)
			}
		}()
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		r := waitReport(t, reports)
		if r.Err != nil || r.Frames != 2 {
			t.Errorf("report %d = %+v, want 2 frames", i, r)
		}
	}
}

func TestServer_FrameHandler_ErrorDoesNotStopServer(t *testing.T) {
	server, reports, _ := startFrameServer(t, Sequential(), func() Sink { return &Discard{} }, 1)

	conn, err := net.DialTCP("tcp", nil, server.Addr().(*net.TCPAddr))
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	full := frameBytes(bytes.Repeat([]byte{3}, 100))
	conn.Write(full[:30])
	conn.Close()

	if r := waitReport(t, reports); r.Err == nil {
		t.Error("expected an error for a frame cut mid-payload")
	}

	sendFrames(t, server.Addr(), []byte("next"))
	if r := waitReport(t, reports); r.Err != nil || r.Frames != 1 {
		t.Errorf("report = %+v, want 1 frame", r)
	}
}

func TestServer_FrameHandler_RejectsMissingPool(t *testing.T) {
	server, err := New(&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}, ServerLoggerOption(NopLogger{}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer server.Close()

	reports := make(chan Report, 1)
	handler := NewFrameHandler(func() Sink { return &Discard{} }, LoggerOption(NopLogger{})).
		OnConnectionDone(func(r Report) { reports <- r })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Serve(ctx, handler)

	sendFrames(t, server.Addr())
	if r := waitReport(t, reports); r.Err != ErrInvalidPool {
		t.Errorf("expected ErrInvalidPool, got %v", r.Err)
	}
}

func TestConcurrent_SequentialFallback(t *testing.T) {
	if _, ok := Concurrent(1).(sequential); !ok {
		t.Error("Concurrent(1) should fall back to Sequential")
	}
	if got := Concurrent(3).Slots(); got != 3 {
		t.Errorf("Slots() = %d, want 3", got)
	}
}

func TestConcurrent_Limit(t *testing.T) {
	s := Concurrent(2)

	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	for i := 0; i < 6; i++ {
		s.Go(context.Background(), func(context.Context) {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
		})
	}
	s.Wait()

	if peak > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", peak)
	}
}
