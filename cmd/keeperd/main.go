// Command keeperd is the unlock agent: a long-lived process that holds the
// vault's master password in memory and serves it to local clients over a
// Unix-domain socket. See internal/keeperd for the implementation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/arcbound/keeper/internal/config"
	"github.com/arcbound/keeper/internal/keeperd"
	"github.com/arcbound/keeper/internal/keeperdsrv"
	"github.com/arcbound/keeper/internal/logging"
	"github.com/arcbound/keeper/internal/metrics"
	"github.com/arcbound/keeper/internal/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "keeperd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.Setup(cfg.LogLevel)

	shutdownTracing, err := tracing.Setup(tracing.Config{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName,
	})
	if err != nil {
		return fmt.Errorf("tracing setup: %w", err)
	}
	defer shutdownTracing(context.Background())

	reg := metrics.New()

	paths := cfg.Paths()
	if err := os.MkdirAll(filepath.Dir(paths.VaultFile), 0700); err != nil {
		return fmt.Errorf("create persistent dir: %w", err)
	}

	agent, err := keeperd.New(paths, logger, reg)
	if err != nil {
		return err
	}

	var stopDebug func(context.Context) error
	if cfg.DebugAddr != "" {
		stopDebug, err = keeperdsrv.Start(cfg.DebugAddr, reg, logger)
		if err != nil {
			return fmt.Errorf("debug server: %w", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("keeperd ready", "socket", paths.SocketFile)

	err = agent.Serve(ctx)

	if stopDebug != nil {
		stopDebug(context.Background())
	}
	return err
}
