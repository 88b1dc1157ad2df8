// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/absmach/streetlight/pkg/codec"
	"github.com/absmach/streetlight/pkg/errors"
	"github.com/absmach/streetlight/pkg/handler"
	"github.com/absmach/streetlight/pkg/metrics"
)

var _ handler.Handler = (*Handler)(nil)

// LimitError rejects a connection. It matches errors.ErrRateLimited and
// implements handler.RetryAfter, so the server answers 429 with a
// Retry-After header when the wait is known.
type LimitError struct {
	// Scope is "global" or "per_host".
	Scope string
	wait  time.Duration
}

func (e *LimitError) Error() string {
	return e.Scope + ": " + errors.ErrRateLimited.Error()
}

func (e *LimitError) Unwrap() error {
	return errors.ErrRateLimited
}

// RetryAfter returns how long until the bucket that rejected the
// connection has a token, or zero if unknown.
func (e *LimitError) RetryAfter() time.Duration {
	return e.wait
}

var _ handler.RetryAfter = (*LimitError)(nil)

// Handler rejects connections over the global rate or from hosts over
// their own rate with a *LimitError.
type Handler struct {
	handler   handler.Handler
	perClient *Limiter
	global    *TokenBucket
	metrics   *metrics.Metrics
}

// NewHandler wraps h. Either limiter and m may be nil.
func NewHandler(h handler.Handler, perClient *Limiter, global *TokenBucket, m *metrics.Metrics) *Handler {
	return &Handler{
		handler:   h,
		perClient: perClient,
		global:    global,
		metrics:   m,
	}
}

// AuthConnect implements handler.Handler with rate limiting.
func (h *Handler) AuthConnect(ctx context.Context, hctx *handler.Context) error {
	if h.global != nil {
		if ok, wait := h.global.Take(); !ok {
			return h.limited("global", wait)
		}
	}
	if h.perClient != nil {
		if ok, wait := h.perClient.Take(clientKey(hctx.RemoteAddr)); !ok {
			return h.limited("per_host", wait)
		}
	}
	return h.handler.AuthConnect(ctx, hctx)
}

func (h *Handler) limited(scope string, wait time.Duration) error {
	if h.metrics != nil {
		h.metrics.RateLimitedRequests.WithLabelValues(scope).Inc()
	}
	return &LimitError{Scope: scope, wait: wait}
}

// Serve implements handler.Handler.
func (h *Handler) Serve(ctx context.Context, hctx *handler.Context, req *codec.Request, w io.Writer) error {
	return h.handler.Serve(ctx, hctx, req, w)
}

// OnDisconnect implements handler.Handler.
func (h *Handler) OnDisconnect(ctx context.Context, hctx *handler.Context) error {
	return h.handler.OnDisconnect(ctx, hctx)
}

// clientKey strips the port so every connection from a host shares a bucket.
func clientKey(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
