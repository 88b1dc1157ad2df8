// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/absmach/streetlight/pkg/codec"
	"github.com/absmach/streetlight/pkg/errors"
)

// Context contains connection metadata and the request line of the message
// being served.
type Context struct {
	// SessionID is a unique identifier for this connection
	SessionID string

	// RemoteAddr is the client's network address
	RemoteAddr string

	// Method and Target are filled in once the request line has been read
	Method string
	Target string
}

// Handler serves one request per connection.
//
// AuthConnect is called when a connection is accepted, before anything is
// read. Returning an error rejects the connection.
//
// Serve is called with the parsed request and the raw connection. It writes
// the response with codec.WriteResponse and may keep writing afterwards, for
// example frames of a stream. The connection is closed when Serve returns.
//
// OnDisconnect is called when the connection is done, whatever the outcome.
// Errors from it are logged but otherwise ignored.
type Handler interface {
	AuthConnect(ctx context.Context, hctx *Context) error

	Serve(ctx context.Context, hctx *Context, req *codec.Request, w io.Writer) error

	OnDisconnect(ctx context.Context, hctx *Context) error
}

// Func adapts a serving function to a Handler that accepts every
// connection.
type Func func(ctx context.Context, hctx *Context, req *codec.Request, w io.Writer) error

var _ Handler = Func(nil)

func (f Func) AuthConnect(ctx context.Context, hctx *Context) error {
	return nil
}

func (f Func) Serve(ctx context.Context, hctx *Context, req *codec.Request, w io.Writer) error {
	return f(ctx, hctx, req, w)
}

func (f Func) OnDisconnect(ctx context.Context, hctx *Context) error {
	return nil
}

// Mux dispatches requests to handlers by exact target.
type Mux struct {
	routes   map[string]Handler
	fallback Handler
}

var _ Handler = (*Mux)(nil)

// NewMux creates a Mux. Requests with no matching route go to fallback, or
// get a 404 response when fallback is nil.
func NewMux(fallback Handler) *Mux {
	return &Mux{
		routes:   make(map[string]Handler),
		fallback: fallback,
	}
}

// Handle registers h for target.
func (m *Mux) Handle(target string, h Handler) {
	m.routes[target] = h
}

// AuthConnect asks the fallback, since no target is known yet.
func (m *Mux) AuthConnect(ctx context.Context, hctx *Context) error {
	if m.fallback == nil {
		return nil
	}
	return m.fallback.AuthConnect(ctx, hctx)
}

// Serve dispatches to the handler registered for req.Target.
func (m *Mux) Serve(ctx context.Context, hctx *Context, req *codec.Request, w io.Writer) error {
	if h, ok := m.routes[req.Target]; ok {
		return h.Serve(ctx, hctx, req, w)
	}
	if m.fallback != nil {
		return m.fallback.Serve(ctx, hctx, req, w)
	}
	return NotFound(w)
}

// OnDisconnect notifies the fallback.
func (m *Mux) OnDisconnect(ctx context.Context, hctx *Context) error {
	if m.fallback == nil {
		return nil
	}
	return m.fallback.OnDisconnect(ctx, hctx)
}

// NotFound writes an empty 404 response.
func NotFound(w io.Writer) error {
	return codec.WriteResponse(w, codec.NewResponse(codec.StatusNotFound, nil))
}

// RetryAfter is implemented by errors that know when a rejected client may
// try again.
type RetryAfter interface {
	RetryAfter() time.Duration
}

// Error writes an empty response whose status reflects err. Errors that
// implement RetryAfter with a positive delay add a Retry-After header in
// whole seconds.
func Error(w io.Writer, err error) error {
	status := codec.StatusInternalServerError
	switch {
	case errors.Is(err, errors.ErrRateLimited):
		status = codec.StatusTooManyRequests
	case errors.Is(err, errors.ErrForbidden):
		status = codec.StatusForbidden
	case errors.Is(err, errors.ErrNotFound):
		status = codec.StatusNotFound
	case errors.Is(err, errors.ErrBackendUnavailable):
		status = codec.StatusServiceUnavailable
	case errors.Kind(err) != "io":
		status = codec.StatusBadRequest
	}
	resp := codec.NewResponse(status, nil)

	var ra RetryAfter
	if errors.As(err, &ra) {
		if d := ra.RetryAfter(); d > 0 {
			secs := int64(math.Ceil(d.Seconds()))
			if err := resp.Header.Add(codec.HeaderRetryAfter, strconv.FormatInt(secs, 10)); err != nil {
				return err
			}
		}
	}
	return codec.WriteResponse(w, resp)
}
