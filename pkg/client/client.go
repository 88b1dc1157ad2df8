// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package client sends a single HTTP/1.1 request over a fresh TCP connection
// and reads the response with the codec.
package client

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/absmach/streetlight/pkg/breaker"
	"github.com/absmach/streetlight/pkg/codec"
	"github.com/absmach/streetlight/pkg/errors"
	"github.com/absmach/streetlight/pkg/metrics"
)

// Config holds the client configuration.
type Config struct {
	// Address is the upstream host:port.
	Address string

	// DialTimeout bounds connection establishment. Default: 10s.
	DialTimeout time.Duration

	// MaxLineBytes limits the response start and header lines. Zero means no limit.
	MaxLineBytes int

	// Breaker guards the upstream. Nil disables it.
	Breaker *breaker.CircuitBreaker

	// Metrics records upstream requests and breaker state. May be nil.
	Metrics *metrics.Metrics

	Logger *slog.Logger
}

// Client performs one request per connection against a fixed upstream.
type Client struct {
	config Config
	dialer net.Dialer
}

// New creates a client.
func New(cfg Config) *Client {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Client{
		config: cfg,
		dialer: net.Dialer{Timeout: cfg.DialTimeout},
	}

	if cfg.Breaker != nil {
		if m := cfg.Metrics; m != nil {
			m.CircuitBreakerState.WithLabelValues(cfg.Address).Set(float64(cfg.Breaker.State()))
		}
		cfg.Breaker.OnStateChange(c.stateChanged)
	}

	return c
}

// Do dials the upstream, writes req, reads the response and closes the
// connection. The response body is fully read before Do returns. When the
// breaker is open Do fails with an error matching errors.ErrBackendUnavailable
// without dialing. Transport failures and 5xx responses count against the
// breaker; a 5xx response is still returned.
func (c *Client) Do(ctx context.Context, req *codec.Request) (*codec.Response, error) {
	start := time.Now()

	done := func(bool) {}
	if cb := c.config.Breaker; cb != nil {
		var err error
		if done, err = cb.Allow(); err != nil {
			c.observe("error", start)
			return nil, err
		}
	}

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		done(false)
		c.observe("error", start)
		return nil, err
	}

	done(resp.Status.Code < 500)
	c.observe(strconv.Itoa(resp.Status.Code), start)
	return resp, nil
}

func (c *Client) observe(status string, start time.Time) {
	if m := c.config.Metrics; m != nil {
		m.BackendRequestsTotal.WithLabelValues(c.config.Address, status).Inc()
		m.BackendDuration.WithLabelValues(c.config.Address).Observe(time.Since(start).Seconds())
	}
}

func (c *Client) roundTrip(ctx context.Context, req *codec.Request) (*codec.Response, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.config.Address)
	if err != nil {
		return nil, errors.Wrap(err, "dial upstream")
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := codec.WriteRequest(conn, req); err != nil {
		return nil, errors.Wrap(err, "write request")
	}

	r := codec.NewReader(conn)
	r.MaxLineBytes = c.config.MaxLineBytes
	resp, err := r.ReadResponse()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(err, "read response")
	}
	return resp, nil
}

func (c *Client) stateChanged(from, to breaker.State) {
	c.config.Logger.Warn("circuit breaker state changed",
		slog.String("upstream", c.config.Address),
		slog.String("from", from.String()),
		slog.String("to", to.String()))

	if m := c.config.Metrics; m != nil {
		m.CircuitBreakerState.WithLabelValues(c.config.Address).Set(float64(to))
		if to == breaker.StateOpen {
			m.CircuitBreakerTrips.WithLabelValues(c.config.Address).Inc()
		}
	}
}
