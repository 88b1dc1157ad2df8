// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/streetlight/pkg/breaker"
	"github.com/absmach/streetlight/pkg/client"
	"github.com/absmach/streetlight/pkg/handler"
	"github.com/absmach/streetlight/pkg/metrics"
	"github.com/absmach/streetlight/pkg/server/tcp"
)

// Config holds configuration for the forwarding proxy.
type Config struct {
	// Address is the listen address (host:port)
	Address string

	// TargetAddress is the upstream host:port
	TargetAddress string

	ShutdownTimeout time.Duration
	DialTimeout     time.Duration
	MaxLineBytes    int

	// Breaker configures the circuit breaker guarding the upstream
	Breaker breaker.Config

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Proxy coordinates the TCP server, the client and the forwarding handler.
type Proxy struct {
	server *tcp.Server
}

// New creates a proxy. wrap, if not nil, decorates the forwarding handler,
// for example with rate limiting.
func New(cfg Config, wrap func(handler.Handler) handler.Handler) *Proxy {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := client.New(client.Config{
		Address:      cfg.TargetAddress,
		DialTimeout:  cfg.DialTimeout,
		MaxLineBytes: cfg.MaxLineBytes,
		Breaker:      breaker.New(cfg.Breaker),
		Metrics:      cfg.Metrics,
		Logger:       cfg.Logger,
	})

	var h handler.Handler = NewForwarder(c, cfg.Logger)
	if wrap != nil {
		h = wrap(h)
	}

	server := tcp.New(tcp.Config{
		Address:         cfg.Address,
		ShutdownTimeout: cfg.ShutdownTimeout,
		MaxLineBytes:    cfg.MaxLineBytes,
		Logger:          cfg.Logger,
		Metrics:         cfg.Metrics,
	}, h)

	return &Proxy{server: server}
}

// Listen starts the proxy and blocks until the context is cancelled.
func (p *Proxy) Listen(ctx context.Context) error {
	return p.server.Listen(ctx)
}
