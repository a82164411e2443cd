// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Partition-daemon hosts the kernel: the shared heap, the domain
// registry and loader, and the crash journal. It registers the boot
// domains named in its configuration and serves the management socket
// the partition CLI talks to.
//
// On startup:
//  1. Loads and validates the configuration (--config or
//     $PARTITION_CONFIG) and creates its directories.
//  2. Reports an update interrupted by the previous run, if any.
//  3. Prunes the crash journal and registers the boot domains in order.
//  4. Serves the management socket until SIGINT or SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/partition/kernel"
	"github.com/bureau-foundation/partition/lib/config"
	"github.com/bureau-foundation/partition/lib/process"
	"github.com/bureau-foundation/partition/lib/service"
	"github.com/bureau-foundation/partition/lib/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], nil)
	stop()
	if err != nil {
		process.Fatal(err)
	}
}

// run starts the daemon and blocks until ctx is done. When ready is
// non-nil it receives the socket path once the socket accepts
// connections.
func run(ctx context.Context, args []string, ready chan<- string) error {
	var (
		configPath          string
		logLevel            string
		maintenanceInterval time.Duration
		showVersion         bool
	)
	flagSet := pflag.NewFlagSet("partition-daemon", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "config file (default: $PARTITION_CONFIG)")
	flagSet.StringVar(&logLevel, "log-level", "info", "minimum log level: debug, info, warn or error")
	flagSet.DurationVar(&maintenanceInterval, "maintenance-interval", time.Hour, "how often to prune the crash journal")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if showVersion {
		fmt.Printf("partition-daemon %s\n", version.Full())
		return nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	attributes := []any{"version", version.Info(), "environment", cfg.Environment}
	if digest, path, err := version.SelfDigest(); err == nil {
		attributes = append(attributes, "binary", path, "digest", digest.String())
	} else {
		logger.Warn("hashing own binary", "error", err)
	}
	logger.Info("partition daemon starting", attributes...)

	kernelConfig, err := kernel.ConfigFrom(cfg)
	if err != nil {
		return err
	}
	kernelConfig.Logger = logger
	k, err := kernel.New(kernelConfig)
	if err != nil {
		return fmt.Errorf("creating kernel: %w", err)
	}
	defer k.Close()

	if err := k.Boot(ctx); err != nil {
		return fmt.Errorf("booting: %w", err)
	}

	server := service.NewSocketServer(cfg.Paths.Socket, logger.With("component", "socket"))
	k.RegisterActions(server)

	go k.RunMaintenance(ctx, maintenanceInterval)
	if ready != nil {
		go func() {
			select {
			case <-server.Ready():
				ready <- cfg.Paths.Socket
			case <-ctx.Done():
			}
		}()
	}

	if err := server.Serve(ctx); err != nil {
		return err
	}
	logger.Info("partition daemon stopped", "uptime", k.Uptime().Round(time.Second))
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config:\n%w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}
