// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package handler provides the interface that links the TCP server to
// application code.
//
// # Data Flow
//
//	Client → Server (accept) → Handler.AuthConnect
//	       → codec.ReadRequest → Handler.Serve (writes response) → close
//	       → Handler.OnDisconnect
//
// One request is served per connection; there is no keep-alive.
//
// # Handler Methods
//
//   - AuthConnect: admits or rejects a freshly accepted connection
//   - Serve: answers the parsed request on the raw connection
//   - OnDisconnect: notifies that the connection is finished
//
// # Composition
//
// Handlers are composed by wrapping: a decorator holds the next Handler and
// forwards each call, adding rate limiting, metrics or logging around it.
// Mux routes by exact request target, and Func turns a plain function into a
// Handler that admits every connection.
//
// # Example
//
//	echo := handler.Func(func(ctx context.Context, hctx *handler.Context, req *codec.Request, w io.Writer) error {
//		body := []byte("<h1>You requested " + req.Target + "</h1>")
//		resp := codec.NewResponse(codec.StatusOK, body)
//		resp.Header.Add(codec.HeaderContentType, "text/html")
//		return codec.WriteResponse(w, resp)
//	})
package handler
