// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/absmach/streetlight/pkg/codec"
	serrors "github.com/absmach/streetlight/pkg/errors"
	"github.com/absmach/streetlight/pkg/handler"
)

type mockHandler struct {
	mu               sync.Mutex
	connectErr       error
	serveBlock       chan struct{}
	connectCalled    bool
	serveCalled      bool
	disconnectCalled chan struct{}
	lastHctx         handler.Context
}

func newMockHandler() *mockHandler {
	return &mockHandler{disconnectCalled: make(chan struct{}, 16)}
}

func (m *mockHandler) AuthConnect(ctx context.Context, hctx *handler.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalled = true
	return m.connectErr
}

func (m *mockHandler) Serve(ctx context.Context, hctx *handler.Context, req *codec.Request, w io.Writer) error {
	m.mu.Lock()
	m.serveCalled = true
	m.lastHctx = *hctx
	block := m.serveBlock
	m.mu.Unlock()

	if block != nil {
		<-block
	}

	body := []byte("<h1>You requested " + req.Target + "</h1>")
	return codec.WriteResponse(w, codec.NewResponse(codec.StatusOK, body))
}

func (m *mockHandler) OnDisconnect(ctx context.Context, hctx *handler.Context) error {
	m.disconnectCalled <- struct{}{}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// startServer serves on a random port and returns its address and a stop
// function that reports the error Serve returned.
func startServer(t *testing.T, cfg Config, h handler.Handler) (string, func() error) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create listener: %v", err)
	}

	if cfg.Logger == nil {
		cfg.Logger = testLogger()
	}
	server := New(cfg, h)

	ctx, cancel := context.WithCancel(context.Background())
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Serve(ctx, listener)
	}()

	stop := func() error {
		cancel()
		select {
		case err := <-serverErr:
			return err
		case <-time.After(10 * time.Second):
			t.Fatal("Server shutdown timeout")
			return nil
		}
	}
	return listener.Addr().String(), stop
}

func roundTrip(t *testing.T, addr, raw string) *codec.Response {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Failed to dial server: %v", err)
	}
	defer conn.Close()

	if _, err := io.WriteString(conn, raw); err != nil {
		t.Fatalf("Failed to write request: %v", err)
	}

	resp, err := codec.ReadResponse(conn)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	return resp
}

func TestTCPServer_ServeRequest(t *testing.T) {
	mockH := newMockHandler()
	addr, stop := startServer(t, Config{ShutdownTimeout: 5 * time.Second}, mockH)

	resp := roundTrip(t, addr, "GET /hello HTTP/1.1\r\nHost: localhost\r\n\r\n")
	if resp.Status.Code != 200 {
		t.Errorf("Expected status 200, got %d", resp.Status.Code)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "<h1>You requested /hello</h1>" {
		t.Errorf("Unexpected body: %q", body)
	}

	select {
	case <-mockH.disconnectCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected OnDisconnect to be called")
	}

	mockH.mu.Lock()
	if mockH.lastHctx.SessionID == "" || mockH.lastHctx.Target != "/hello" || mockH.lastHctx.Method != "GET" {
		t.Errorf("Unexpected handler context: %+v", mockH.lastHctx)
	}
	mockH.mu.Unlock()

	if err := stop(); err != nil {
		t.Errorf("Server shutdown with error: %v", err)
	}
}

func TestTCPServer_ConnectionClosedQuietly(t *testing.T) {
	mockH := newMockHandler()
	addr, stop := startServer(t, Config{ShutdownTimeout: 5 * time.Second}, mockH)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Failed to dial server: %v", err)
	}
	conn.Close()

	select {
	case <-mockH.disconnectCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected OnDisconnect to be called")
	}

	mockH.mu.Lock()
	defer mockH.mu.Unlock()
	if mockH.serveCalled {
		t.Error("Serve should not be called for an empty connection")
	}
}

func TestTCPServer_MalformedRequest(t *testing.T) {
	mockH := newMockHandler()
	addr, stop := startServer(t, Config{ShutdownTimeout: 5 * time.Second}, mockH)
	defer stop()

	tests := []struct {
		name string
		raw  string
	}{
		{"two field start line", "GET /\r\n"},
		{"header without colon", "GET / HTTP/1.1\r\nno colon\r\n"},
		{"bad content length", "POST / HTTP/1.1\r\nContent-Length: x\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := roundTrip(t, addr, tt.raw)
			if resp.Status.Code != 400 {
				t.Errorf("Expected status 400, got %d", resp.Status.Code)
			}
		})
	}
}

func TestTCPServer_LineLimit(t *testing.T) {
	mockH := newMockHandler()
	addr, stop := startServer(t, Config{ShutdownTimeout: 5 * time.Second, MaxLineBytes: 64}, mockH)
	defer stop()

	resp := roundTrip(t, addr, "GET / HTTP/1.1\r\nX-Long: "+strings.Repeat("a", 128)+"\r\n\r\n")
	if resp.Status.Code != 400 {
		t.Errorf("Expected status 400, got %d", resp.Status.Code)
	}
}

func TestTCPServer_ConnectRejected(t *testing.T) {
	mockH := newMockHandler()
	mockH.connectErr = serrors.ErrRateLimited
	addr, stop := startServer(t, Config{ShutdownTimeout: 5 * time.Second}, mockH)
	defer stop()

	// The rejection is written before anything is read.
	resp := roundTrip(t, addr, "")
	if resp.Status.Code != 429 {
		t.Errorf("Expected status 429, got %d", resp.Status.Code)
	}
}

func TestTCPServer_ShutdownTimeout(t *testing.T) {
	mockH := newMockHandler()
	mockH.serveBlock = make(chan struct{})
	defer close(mockH.serveBlock)

	addr, stop := startServer(t, Config{ShutdownTimeout: 100 * time.Millisecond}, mockH)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Failed to dial server: %v", err)
	}
	defer conn.Close()
	io.WriteString(conn, "GET / HTTP/1.1\r\n\r\n")

	// Wait for the handler to be blocked in Serve.
	deadline := time.Now().Add(2 * time.Second)
	for {
		mockH.mu.Lock()
		called := mockH.serveCalled
		mockH.mu.Unlock()
		if called || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := stop(); !errors.Is(err, ErrShutdownTimeout) {
		t.Errorf("Expected ErrShutdownTimeout, got %v", err)
	}
}

func TestTCPServer_BlockedReadIsClosedOnShutdown(t *testing.T) {
	mockH := newMockHandler()
	addr, stop := startServer(t, Config{ShutdownTimeout: 100 * time.Millisecond}, mockH)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Failed to dial server: %v", err)
	}
	defer conn.Close()
	// Half a request line keeps the server blocked in the codec.
	io.WriteString(conn, "GET / HT")
	time.Sleep(100 * time.Millisecond)

	if err := stop(); err != nil && !errors.Is(err, ErrShutdownTimeout) {
		t.Errorf("Unexpected shutdown error: %v", err)
	}

	select {
	case <-mockH.disconnectCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected blocked connection to be closed")
	}
}

func TestTCPServer_InvalidAddress(t *testing.T) {
	cfg := Config{
		Address:         "invalid:address:99999",
		ShutdownTimeout: 5 * time.Second,
		Logger:          testLogger(),
	}

	server := New(cfg, newMockHandler())

	if err := server.Listen(context.Background()); err == nil {
		t.Error("Expected error for invalid address")
	}
}

func TestTCPServer_ContextCancellation(t *testing.T) {
	server := New(Config{Address: "127.0.0.1:0", Logger: testLogger()}, newMockHandler())

	ctx, cancel := context.WithCancel(context.Background())

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Listen(ctx)
	}()

	cancel()

	select {
	case <-serverErr:
	case <-time.After(2 * time.Second):
		t.Error("Server did not shutdown in time after context cancellation")
	}
}

func TestNew_DefaultConfig(t *testing.T) {
	server := New(Config{Address: "localhost:0"}, newMockHandler())

	if server == nil {
		t.Fatal("Expected non-nil server")
	}
	if server.config.Logger == nil {
		t.Error("Expected default logger to be set")
	}
	if server.config.ShutdownTimeout == 0 {
		t.Error("Expected default shutdown timeout to be set")
	}
}

type streamHandler struct {
	started chan struct{}
}

func (h *streamHandler) AuthConnect(ctx context.Context, hctx *handler.Context) error {
	return nil
}

func (h *streamHandler) Serve(ctx context.Context, hctx *handler.Context, req *codec.Request, w io.Writer) error {
	close(h.started)
	<-ctx.Done()
	return nil
}

func (h *streamHandler) OnDisconnect(ctx context.Context, hctx *handler.Context) error {
	return nil
}

func TestTCPServer_DrainCancelsServeContext(t *testing.T) {
	h := &streamHandler{started: make(chan struct{})}
	addr, stop := startServer(t, Config{ShutdownTimeout: 5 * time.Second}, h)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Failed to dial server: %v", err)
	}
	defer conn.Close()
	io.WriteString(conn, "GET /events HTTP/1.1\r\n\r\n")

	select {
	case <-h.started:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve was not called")
	}

	start := time.Now()
	if err := stop(); err != nil {
		t.Errorf("Expected graceful shutdown, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Shutdown waited %v for a handler that honours its context", elapsed)
	}
}
