// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/absmach/streetlight/pkg/codec"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	got := make(chan *codec.Request, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		req, err := codec.ReadRequest(conn)
		if err != nil {
			return
		}
		got <- req
		_ = codec.WriteResponse(conn, codec.NewResponse(codec.StatusNotFound, nil))
	}()

	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, run(context.Background(), ln.Addr().String(), &out, logger))
	require.Equal(t, "Status code: 404 Not Found\n", out.String())

	req := <-got
	require.Equal(t, "GET", req.Method)
	require.Equal(t, "/", req.Target)
	require.Equal(t, codec.HTTP11, req.Version)
}

func TestRun_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	var out bytes.Buffer
	err = run(context.Background(), addr, &out, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	require.Empty(t, out.String())
}
