// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"os"
	"time"

	"github.com/bureau-foundation/partition/lib/config"
	"github.com/bureau-foundation/partition/lib/service"
)

// SocketEnvironmentVariable overrides the management socket path.
const SocketEnvironmentVariable = "PARTITION_SOCKET"

// ConnectFlags locate the daemon's management socket. Embed them in a
// params struct.
type ConnectFlags struct {
	Socket  string        `flag:"socket" desc:"management socket path (default: $PARTITION_SOCKET, then paths.socket from $PARTITION_CONFIG)"`
	Timeout time.Duration `flag:"timeout" desc:"how long to wait for the daemon" default:"10s"`
}

// SocketPath resolves the socket: the --socket flag, then
// PARTITION_SOCKET, then the configured path, then the default path.
func (f *ConnectFlags) SocketPath() (string, error) {
	if f.Socket != "" {
		return f.Socket, nil
	}
	if path := os.Getenv(SocketEnvironmentVariable); path != "" {
		return path, nil
	}
	var (
		cfg *config.Config
		err error
	)
	if os.Getenv(config.EnvironmentVariable) != "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.Parse(nil)
	}
	if err != nil {
		return "", err
	}
	return cfg.Paths.Socket, nil
}

// Client returns a client for the resolved socket.
func (f *ConnectFlags) Client() (*service.ServiceClient, error) {
	path, err := f.SocketPath()
	if err != nil {
		return nil, err
	}
	return service.NewServiceClient(path), nil
}

// Context returns a context bounded by --timeout.
func (f *ConnectFlags) Context() (context.Context, context.CancelFunc) {
	if f.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), f.Timeout)
}
