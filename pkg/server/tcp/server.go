// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tcp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/absmach/streetlight/pkg/codec"
	"github.com/absmach/streetlight/pkg/errors"
	"github.com/absmach/streetlight/pkg/handler"
	"github.com/absmach/streetlight/pkg/metrics"
	"github.com/google/uuid"
)

var (
	// ErrShutdownTimeout is returned when graceful shutdown exceeds the configured timeout.
	ErrShutdownTimeout = fmt.Errorf("shutdown timeout exceeded")
)

// Config holds the TCP server configuration.
type Config struct {
	// Address is the listen address (host:port)
	Address string

	// ShutdownTimeout is the maximum time to wait for active connections to drain
	// during graceful shutdown. After this timeout, remaining connections are
	// forcefully closed.
	ShutdownTimeout time.Duration

	// MaxLineBytes limits start and header line length. Zero means no limit.
	MaxLineBytes int

	// Logger for server events
	Logger *slog.Logger

	// Metrics counts requests that fail to parse. May be nil.
	Metrics *metrics.Metrics
}

// Server accepts TCP connections and serves one HTTP/1.1 request on each.
type Server struct {
	config  Config
	handler handler.Handler
	wg      sync.WaitGroup
}

// New creates a new TCP server with the given configuration and handler.
func New(cfg Config, h handler.Handler) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	return &Server{
		config:  cfg,
		handler: h,
	}
}

// Listen listens on the configured address and serves until the context is
// cancelled.
func (s *Server) Listen(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener and blocks until the context is
// cancelled. It implements graceful shutdown with connection draining and
// closes the listener on return.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.config.Logger.Info("TCP server started", slog.String("address", listener.Addr().String()))

	// Cancelling connCtx closes every active connection, which is the only
	// way to unblock a codec call. serveCtx is handed to handlers and is
	// cancelled when draining starts.
	connCtx, connCancel := context.WithCancel(context.Background())
	defer connCancel()
	serveCtx, serveCancel := context.WithCancel(connCtx)
	defer serveCancel()

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.config.Logger.Error("failed to accept connection", slog.String("error", err.Error()))
				continue
			}

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				if err := s.handleConn(connCtx, serveCtx, conn); err != nil {
					s.config.Logger.Debug("connection handler error",
						slog.String("remote", conn.RemoteAddr().String()),
						slog.String("error", err.Error()))
				}
			}()
		}
	}()

	<-ctx.Done()
	s.config.Logger.Info("shutdown signal received, closing listener")
	serveCancel()

	if err := listener.Close(); err != nil {
		s.config.Logger.Error("error closing listener", slog.String("error", err.Error()))
	}
	<-acceptDone

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.config.Logger.Info("all connections closed gracefully")
		return nil
	case <-time.After(s.config.ShutdownTimeout):
		s.config.Logger.Warn("shutdown timeout exceeded, forcing connection closure")
		connCancel()
		select {
		case <-done:
		case <-time.After(1 * time.Second):
		}
		return ErrShutdownTimeout
	}
}

// handleConn serves a single connection by:
// 1. Asking the handler to admit it
// 2. Reading one request
// 3. Letting the handler write the response
// 4. Closing the connection and notifying the handler
//
// connCtx closes the connection when cancelled; ctx is passed to the handler.
func (s *Server) handleConn(connCtx, ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	stop := context.AfterFunc(connCtx, func() { conn.Close() })
	defer stop()

	hctx := &handler.Context{
		SessionID:  uuid.New().String(),
		RemoteAddr: conn.RemoteAddr().String(),
	}

	defer func() {
		if err := s.handler.OnDisconnect(context.Background(), hctx); err != nil {
			s.config.Logger.Error("disconnect handler error",
				slog.String("session", hctx.SessionID),
				slog.String("error", err.Error()))
		}
		s.config.Logger.Debug("connection closed", slog.String("session", hctx.SessionID))
	}()

	if err := s.handler.AuthConnect(ctx, hctx); err != nil {
		if werr := handler.Error(conn, err); werr != nil {
			return werr
		}
		return errors.Wrap(err, "connection rejected")
	}

	r := codec.NewReader(conn)
	r.MaxLineBytes = s.config.MaxLineBytes

	req, err := r.ReadRequest()
	switch {
	case errors.Is(err, errors.ErrConnectionClosed):
		return nil
	case err != nil:
		s.config.Metrics.ParseError(err)
		// Only answer errors the peer caused; I/O failures leave nothing to write to.
		if errors.Kind(err) != "io" {
			if werr := handler.Error(conn, err); werr != nil {
				return werr
			}
		}
		return errors.Wrap(err, "read request")
	}

	hctx.Method = req.Method
	hctx.Target = req.Target

	s.config.Logger.Debug("request received",
		slog.String("session", hctx.SessionID),
		slog.String("method", req.Method),
		slog.String("target", req.Target))

	return s.handler.Serve(ctx, hctx, req, conn)
}
