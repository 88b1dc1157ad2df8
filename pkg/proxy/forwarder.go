// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"io"
	"log/slog"

	"github.com/absmach/streetlight/pkg/client"
	"github.com/absmach/streetlight/pkg/codec"
	"github.com/absmach/streetlight/pkg/errors"
	"github.com/absmach/streetlight/pkg/handler"
)

var _ handler.Handler = (*Forwarder)(nil)

// Forwarder relays each request to an upstream and writes the upstream's
// response back. An unreachable upstream is answered with 502, an open
// circuit with 503.
type Forwarder struct {
	client *client.Client
	logger *slog.Logger
}

// NewForwarder creates a Forwarder sending requests through c.
func NewForwarder(c *client.Client, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{client: c, logger: logger}
}

// AuthConnect accepts every connection.
func (f *Forwarder) AuthConnect(ctx context.Context, hctx *handler.Context) error {
	return nil
}

// Serve forwards req upstream.
func (f *Forwarder) Serve(ctx context.Context, hctx *handler.Context, req *codec.Request, w io.Writer) error {
	resp, err := f.client.Do(ctx, req)
	if err != nil {
		f.logger.Warn("upstream request failed",
			slog.String("session", hctx.SessionID),
			slog.String("target", req.Target),
			slog.String("error", err.Error()))

		if errors.Is(err, errors.ErrBackendUnavailable) {
			return handler.Error(w, err)
		}
		return codec.WriteResponse(w, codec.NewResponse(codec.StatusBadGateway, nil))
	}

	return codec.WriteResponse(w, resp)
}

// OnDisconnect does nothing.
func (f *Forwarder) OnDisconnect(ctx context.Context, hctx *handler.Context) error {
	return nil
}
