// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package streetlight holds the per-server configuration shared by the
// binaries.
package streetlight

import (
	"net"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config describes one server. Each server reads it under its own
// environment prefix, for example STREETLIGHT_ECHO_PORT.
type Config struct {
	Host string `env:"HOST" envDefault:""`
	Port string `env:"PORT" envDefault:""`

	// ShutdownTimeout bounds connection draining on shutdown.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// MaxLineBytes limits start and header lines. Zero means no limit.
	MaxLineBytes int `env:"MAX_LINE_BYTES" envDefault:"8192"`

	// RootDir is the directory served by the file server.
	RootDir string `env:"ROOT_DIR" envDefault:"."`

	// EventInterval is the delay between server-sent events.
	EventInterval time.Duration `env:"EVENT_INTERVAL" envDefault:"1s"`

	// TargetHost and TargetPort address the upstream of the forwarding proxy.
	TargetHost string `env:"TARGET_HOST" envDefault:""`
	TargetPort string `env:"TARGET_PORT" envDefault:""`

	DialTimeout time.Duration `env:"DIAL_TIMEOUT" envDefault:"10s"`
}

// NewConfig parses the configuration from the environment.
func NewConfig(opts env.Options) (Config, error) {
	c := Config{}
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Address returns the listen address.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// TargetAddress returns the upstream address, or "" when none is set.
func (c Config) TargetAddress() string {
	if c.TargetHost == "" && c.TargetPort == "" {
		return ""
	}
	return net.JoinHostPort(c.TargetHost, c.TargetPort)
}
