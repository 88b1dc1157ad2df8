// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/absmach/streetlight/pkg/codec"
	"github.com/absmach/streetlight/pkg/handler"
)

var _ handler.Handler = (*InstrumentedHandler)(nil)

// InstrumentedHandler wraps a handler with metrics instrumentation. A nil
// *Metrics turns it into a pass-through.
type InstrumentedHandler struct {
	handler handler.Handler
	metrics *Metrics

	// Connection start times, keyed by *handler.Context.
	started sync.Map
}

// NewHandler wraps h so every connection and request is recorded in m.
func NewHandler(h handler.Handler, m *Metrics) *InstrumentedHandler {
	return &InstrumentedHandler{handler: h, metrics: m}
}

// AuthConnect implements handler.Handler with metrics. The connection is
// counted as active until OnDisconnect, which the server calls either way.
func (h *InstrumentedHandler) AuthConnect(ctx context.Context, hctx *handler.Context) error {
	h.started.Store(hctx, time.Now())
	err := h.handler.AuthConnect(ctx, hctx)
	h.metrics.ConnectionOpened(err)
	return err
}

// Serve implements handler.Handler with metrics. The status label is taken
// from the status line the wrapped handler writes.
func (h *InstrumentedHandler) Serve(ctx context.Context, hctx *handler.Context, req *codec.Request, w io.Writer) error {
	reqSize := int64(-1)
	if n, err := req.ContentLength(); err == nil {
		reqSize = int64(n)
	}

	rec := &recorder{w: w}
	err := h.metrics.ObserveRequest(req.Method, func() (string, error) {
		err := h.handler.Serve(ctx, hctx, req, rec)
		return rec.statusLabel(), err
	})
	h.metrics.ObserveSizes(reqSize, rec.n)
	return err
}

// OnDisconnect implements handler.Handler with metrics.
func (h *InstrumentedHandler) OnDisconnect(ctx context.Context, hctx *handler.Context) error {
	if start, ok := h.started.LoadAndDelete(hctx); ok {
		h.metrics.ConnectionClosed(start.(time.Time))
	}
	return h.handler.OnDisconnect(ctx, hctx)
}

// recorder counts bytes and captures the status code from the first line
// written, which the codec always writes in one piece with the head.
type recorder struct {
	w      io.Writer
	n      int64
	status string
}

func (r *recorder) Write(p []byte) (int, error) {
	if r.status == "" {
		r.status = "unknown"
		if i := bytes.IndexByte(p, '\n'); i > 0 {
			if _, s, err := codec.ParseStatusLine(string(p[:i])); err == nil {
				r.status = strconv.Itoa(s.Code)
			}
		}
	}
	n, err := r.w.Write(p)
	r.n += int64(n)
	return n, err
}

func (r *recorder) statusLabel() string {
	if r.status == "" {
		return "none"
	}
	return r.status
}
