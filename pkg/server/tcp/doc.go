// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package tcp implements the TCP server that serves HTTP/1.1 messages with
// the codec.
//
// # Overview
//
// The server accepts connections, runs one goroutine per connection and
// serves exactly one request on each before closing it. Persistent
// connections and pipelining are not supported.
//
// # Connection Flow
//
//  1. Client connects to server
//  2. Server assigns a session ID and calls handler.AuthConnect()
//     - a rejection is answered with 429 (rate limited) or another error status
//  3. Server reads one request with codec.Reader
//     - a peer that hangs up before sending anything is closed quietly
//     - a malformed request is answered with 400 Bad Request
//  4. Server calls handler.Serve() with the raw connection as writer
//  5. Connection is closed and handler.OnDisconnect() is called
//
// # Blocking and Cancellation
//
// Codec calls block until the message is complete. The server enforces no
// timeouts; the only way to abort a blocked read or write is to close the
// connection, which the server does for all active connections when the
// shutdown timeout expires.
//
// # Graceful Shutdown
//
// When context is canceled:
//
//  1. Server stops accepting new connections
//  2. Server waits for existing connections (with timeout)
//  3. After ShutdownTimeout, forcefully closes remaining connections
//  4. Returns ErrShutdownTimeout if timeout exceeded
//
// # Configuration
//
//   - Address: Server listen address (e.g., ":8080")
//   - ShutdownTimeout: Max wait time for graceful shutdown (default: 30s)
//   - MaxLineBytes: Optional limit for start and header lines
//   - Logger: Structured logger
//
// # Example
//
//	cfg := tcp.Config{
//		Address:         ":8080",
//		ShutdownTimeout: 30 * time.Second,
//	}
//
//	server := tcp.New(cfg, echo.New())
//	if err := server.Listen(ctx); err != nil {
//		log.Fatal(err)
//	}
package tcp
