package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/canaryhq/canary-agent/internal/collector"
	"github.com/canaryhq/canary-agent/internal/debugserver"
	"github.com/canaryhq/canary-agent/internal/plugin"
	"github.com/canaryhq/canary-agent/internal/plugins"
	"github.com/canaryhq/canary-agent/internal/settings"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the collection loop in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context())
		},
	}
}

func runAgent(ctx context.Context) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}

	logger, err := newLogger(s)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	client, metricsRegistry := newClient(logger)
	store := settings.NewStore(s)

	registry := plugin.NewRegistry()
	plugins.Register(registry)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	loop := collector.New(registry, client, store, metricsRegistry, logger, hostname, version)

	debugSrv := debugserver.New(debugAddr, logger, func() debugserver.Status {
		status := loop.LastStatus()
		return debugserver.Status{
			LastTickAt:       status.LastTickAt,
			LastTickOK:       status.LastTickOK,
			CollectIntervalS: status.CollectIntervalS,
			ActivePlugins:    status.ActivePlugins,
		}
	})
	go func() {
		if err := debugSrv.Serve(); err != nil {
			logger.Warn("debug server stopped", "error", err)
		}
	}()
	defer debugSrv.Shutdown()

	// TERM and interrupt both trigger graceful shutdown; any other signal
	// uses the platform default.
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting canaryd", "version", version, "hostname", hostname)

	if err := loop.Init(sigCtx); err != nil {
		return err
	}

	return loop.Run(sigCtx)
}
