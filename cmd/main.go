// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/absmach/streetlight"
	"github.com/absmach/streetlight/examples/echo"
	"github.com/absmach/streetlight/examples/events"
	"github.com/absmach/streetlight/examples/fileserver"
	"github.com/absmach/streetlight/examples/simple"
	"github.com/absmach/streetlight/pkg/handler"
	"github.com/absmach/streetlight/pkg/proxy"
	"github.com/absmach/streetlight/pkg/server/tcp"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const (
	echoPrefix   = "STREETLIGHT_ECHO_"
	filesPrefix  = "STREETLIGHT_FILES_"
	eventsPrefix = "STREETLIGHT_EVENTS_"
	proxyPrefix  = "STREETLIGHT_PROXY_"
)

var errPortNotConfigured = fmt.Errorf("port not configured")

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	logger := slog.New(logHandler)

	// Load .env file
	if err := godotenv.Load(); err != nil {
		logger.Warn("no .env file found, using environment variables")
	}

	if err := startServer(g, ctx, echoPrefix, logger, func(streetlight.Config) (handler.Handler, error) {
		return echo.New(), nil
	}); err != nil {
		logger.Warn("echo server not started", slog.String("error", err.Error()))
	}

	if err := startServer(g, ctx, filesPrefix, logger, func(cfg streetlight.Config) (handler.Handler, error) {
		return fileserver.New(cfg.RootDir, logger)
	}); err != nil {
		logger.Warn("file server not started", slog.String("error", err.Error()))
	}

	if err := startServer(g, ctx, eventsPrefix, logger, func(cfg streetlight.Config) (handler.Handler, error) {
		return events.New(events.Config{Interval: cfg.EventInterval}), nil
	}); err != nil {
		logger.Warn("events server not started", slog.String("error", err.Error()))
	}

	if err := startProxy(g, ctx, proxyPrefix, logger); err != nil {
		logger.Warn("proxy not started", slog.String("error", err.Error()))
	}

	// Signal handler
	g.Go(func() error {
		return StopSignalHandler(ctx, cancel, logger)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("streetlight service terminated with error: %s", err))
	} else {
		logger.Info("streetlight service stopped")
	}
}

func startServer(g *errgroup.Group, ctx context.Context, envPrefix string, logger *slog.Logger, newHandler func(streetlight.Config) (handler.Handler, error)) error {
	cfg, err := streetlight.NewConfig(env.Options{Prefix: envPrefix})
	if err != nil {
		return err
	}

	// Skip if port is not configured
	if cfg.Port == "" {
		return errPortNotConfigured
	}

	h, err := newHandler(cfg)
	if err != nil {
		return err
	}

	server := tcp.New(tcp.Config{
		Address:         cfg.Address(),
		ShutdownTimeout: cfg.ShutdownTimeout,
		MaxLineBytes:    cfg.MaxLineBytes,
		Logger:          logger,
	}, simple.New(h, logger))

	g.Go(func() error {
		return server.Listen(ctx)
	})

	logger.Info("server started", slog.String("prefix", envPrefix))
	return nil
}

func startProxy(g *errgroup.Group, ctx context.Context, envPrefix string, logger *slog.Logger) error {
	cfg, err := streetlight.NewConfig(env.Options{Prefix: envPrefix})
	if err != nil {
		return err
	}

	// Skip if port is not configured
	if cfg.Port == "" {
		return errPortNotConfigured
	}
	if cfg.TargetAddress() == "" {
		return fmt.Errorf("target not configured")
	}

	p := proxy.New(proxy.Config{
		Address:         cfg.Address(),
		TargetAddress:   cfg.TargetAddress(),
		ShutdownTimeout: cfg.ShutdownTimeout,
		DialTimeout:     cfg.DialTimeout,
		MaxLineBytes:    cfg.MaxLineBytes,
		Logger:          logger,
	}, func(h handler.Handler) handler.Handler {
		return simple.New(h, logger)
	})

	g.Go(func() error {
		return p.Listen(ctx)
	})

	logger.Info("proxy started", slog.String("prefix", envPrefix), slog.String("target", cfg.TargetAddress()))
	return nil
}

func StopSignalHandler(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger) error {
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-c:
		logger.Info("received shutdown signal")
		cancel()
		return nil
	case <-ctx.Done():
		return nil
	}
}
