// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Command status sends GET / to a server and prints the response status.
//
//	status localhost:8080
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/absmach/streetlight/pkg/client"
	"github.com/absmach/streetlight/pkg/codec"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s host:port\n", os.Args[0])
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(context.Background(), os.Args[1], os.Stdout, logger); err != nil {
		logger.Error("status check failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, addr string, out io.Writer, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	c := client.New(client.Config{Address: addr, Logger: logger})
	resp, err := c.Do(ctx, codec.NewRequest("GET", "/"))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "Status code: %s\n", resp.Status)
	return err
}
