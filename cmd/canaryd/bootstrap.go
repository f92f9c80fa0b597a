package main

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/canaryhq/canary-agent/internal/agentlog"
	"github.com/canaryhq/canary-agent/internal/metrics"
	"github.com/canaryhq/canary-agent/internal/remote"
	"github.com/canaryhq/canary-agent/internal/settings"
	"github.com/canaryhq/canary-agent/internal/specvalidate"
)

// loadSettings reads canaryd.conf (and, if configured, the YAML per-plugin
// override file), applies environment overrides, and validates the result
// is complete enough to start.
func loadSettings() (*settings.Settings, error) {
	s, err := settings.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if err := settings.LoadPluginOverridesYAML(s, pluginOverride); err != nil {
		return nil, fmt.Errorf("load plugin overrides: %w", err)
	}

	doc := specvalidate.Document{
		APIBase:              s.APIBase(),
		APIKey:               s.APIKey(),
		ServerID:             s.ServerID(),
		CollectIntervalS:     s.CollectIntervalS,
		SlowCollectIntervalS: s.SlowCollectIntervalS,
	}
	if err := specvalidate.Startup(doc); err != nil {
		return nil, err
	}

	return s, nil
}

// newLogger builds the agent's structured logger from s.
func newLogger(s *settings.Settings) (*slog.Logger, error) {
	return agentlog.New(agentlog.Config{
		LogFile:        s.LogFile,
		RotationCount:  s.LogFileRotationCount,
		SyslogFacility: s.SyslogFacility,
		Debug:          s.Debug,
	})
}

// newClient builds a Remote Client and its metrics registry.
func newClient(logger *slog.Logger) (*remote.Client, *metrics.Registry) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	return remote.New(logger, reg.Remote), reg
}
