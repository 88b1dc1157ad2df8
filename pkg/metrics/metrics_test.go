// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/absmach/streetlight/pkg/codec"
	serrors "github.com/absmach/streetlight/pkg/errors"
	"github.com/absmach/streetlight/pkg/handler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return New("test", prometheus.NewRegistry())
}

func TestNew_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("", reg)

	m.FrameWritten()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "streetlight_frames_written_total" {
			found = true
		}
	}
	if !found {
		t.Error("Expected streetlight_frames_written_total to be registered")
	}
}

func TestParseError(t *testing.T) {
	m := newTestMetrics(t)

	m.ParseError(serrors.New("parse header line", "x", serrors.ErrMalformedHeaderLine))
	m.ParseError(serrors.New("read start line", "", serrors.ErrConnectionClosed))
	m.ParseError(nil)

	if got := testutil.ToFloat64(m.ParseErrors.WithLabelValues("malformed_header_line")); got != 1 {
		t.Errorf("Expected 1 malformed header error, got %v", got)
	}
	if got := testutil.CollectAndCount(m.ParseErrors); got != 1 {
		t.Errorf("Expected a single label set, got %d", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	m.ParseError(serrors.ErrLineTooLong)
	m.FrameWritten()
	m.ConnectionOpened(nil)
	m.ConnectionClosed(time.Now())
	m.ObserveSizes(10, 20)
	if err := m.ObserveRequest("GET", func() (string, error) { return "200", nil }); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestInstrumentedHandler(t *testing.T) {
	m := newTestMetrics(t)
	inner := handler.Func(func(ctx context.Context, hctx *handler.Context, req *codec.Request, w io.Writer) error {
		return codec.WriteResponse(w, codec.NewResponse(codec.StatusNotFound, []byte("gone")))
	})
	h := NewHandler(inner, m)

	ctx := context.Background()
	hctx := &handler.Context{SessionID: "s1"}

	if err := h.AuthConnect(ctx, hctx); err != nil {
		t.Fatalf("AuthConnect failed: %v", err)
	}
	if got := testutil.ToFloat64(m.ActiveConnections); got != 1 {
		t.Errorf("Expected 1 active connection, got %v", got)
	}

	var buf bytes.Buffer
	req := codec.NewRequest("GET", "/missing")
	if err := h.Serve(ctx, hctx, req, &buf); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	if err := h.OnDisconnect(ctx, hctx); err != nil {
		t.Fatalf("OnDisconnect failed: %v", err)
	}

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "404")); got != 1 {
		t.Errorf("Expected 1 GET 404, got %v", got)
	}
	if got := testutil.ToFloat64(m.ActiveConnections); got != 0 {
		t.Errorf("Expected no active connections, got %v", got)
	}
	if got := testutil.ToFloat64(m.TotalConnections.WithLabelValues("accepted")); got != 1 {
		t.Errorf("Expected 1 accepted connection, got %v", got)
	}
	if got := testutil.CollectAndCount(m.TotalConnections); got != 1 {
		t.Errorf("Expected a single connection status label, got %d", got)
	}
	if got := testutil.CollectAndCount(m.ConnectionDuration); got != 1 {
		t.Errorf("Expected connection duration to be recorded, got %d", got)
	}
}

func TestInstrumentedHandler_Rejected(t *testing.T) {
	m := newTestMetrics(t)
	reject := serrors.ErrRateLimited
	h := NewHandler(rejectHandler{err: reject}, m)

	ctx := context.Background()
	hctx := &handler.Context{SessionID: "s2"}

	if err := h.AuthConnect(ctx, hctx); !errors.Is(err, reject) {
		t.Fatalf("Expected rejection, got %v", err)
	}
	if err := h.OnDisconnect(ctx, hctx); err != nil {
		t.Fatalf("OnDisconnect failed: %v", err)
	}

	if got := testutil.ToFloat64(m.TotalConnections.WithLabelValues("rejected")); got != 1 {
		t.Errorf("Expected 1 rejected connection, got %v", got)
	}
	if got := testutil.ToFloat64(m.ActiveConnections); got != 0 {
		t.Errorf("Expected no active connections, got %v", got)
	}
}

func TestInstrumentedHandler_NilMetrics(t *testing.T) {
	h := NewHandler(handler.NewMux(nil), nil)

	ctx := context.Background()
	hctx := &handler.Context{SessionID: "s3"}

	if err := h.AuthConnect(ctx, hctx); err != nil {
		t.Fatalf("AuthConnect failed: %v", err)
	}

	var buf bytes.Buffer
	if err := h.Serve(ctx, hctx, codec.NewRequest("GET", "/"), &buf); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	if err := h.OnDisconnect(ctx, hctx); err != nil {
		t.Fatalf("OnDisconnect failed: %v", err)
	}

	resp, err := codec.ReadResponse(&buf)
	if err != nil {
		t.Fatalf("ReadResponse failed: %v", err)
	}
	if resp.Status.Code != 404 {
		t.Errorf("Expected 404, got %d", resp.Status.Code)
	}
}

type rejectHandler struct {
	err error
}

func (r rejectHandler) AuthConnect(ctx context.Context, hctx *handler.Context) error { return r.err }

func (r rejectHandler) Serve(ctx context.Context, hctx *handler.Context, req *codec.Request, w io.Writer) error {
	return nil
}

func (r rejectHandler) OnDisconnect(ctx context.Context, hctx *handler.Context) error { return nil }

func TestInstrumentedHandler_NoResponse(t *testing.T) {
	m := newTestMetrics(t)
	inner := handler.Func(func(ctx context.Context, hctx *handler.Context, req *codec.Request, w io.Writer) error {
		return serrors.ErrForbidden
	})
	h := NewHandler(inner, m)

	err := h.Serve(context.Background(), &handler.Context{}, codec.NewRequest("POST", "/"), io.Discard)
	if !errors.Is(err, serrors.ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "none")); got != 1 {
		t.Errorf("Expected request without response to be labelled none, got %v", got)
	}
}
