// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package proxy relays HTTP/1.1 requests to an upstream server.
//
// # Overview
//
// The Forwarder is an ordinary handler: it sends the parsed request upstream
// with the client and writes the upstream's response back with the codec.
// Proxy wires it to a TCP server:
//
//	Client
//	   ↓
//	┌──────────────┐
//	│  tcp.Server  │  reads one request
//	└──────────────┘
//	   ↓
//	┌──────────────┐
//	│  Forwarder   │  writes the upstream response
//	└──────────────┘
//	   ↓
//	┌──────────────┐
//	│   client     │  one connection per request, circuit breaker
//	└──────────────┘
//	   ↓
//	Upstream
//
// # Failure Handling
//
//   - Upstream unreachable or answering garbage: 502 Bad Gateway
//   - Circuit breaker open: 503 Service Unavailable, without dialing
//
// # Example
//
//	p := proxy.New(proxy.Config{
//		Address:       ":8080",
//		TargetAddress: "localhost:9090",
//	}, nil)
//
//	if err := p.Listen(ctx); err != nil {
//		log.Fatal(err)
//	}
package proxy
