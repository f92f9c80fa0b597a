// Package collector implements the Collection Loop: the one persistent,
// single-threaded cycle that ties the Plugin Registry, Isolated Plugin
// Runner, State Diff Engine, Remote Client, and Backoff Driver together.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/canaryhq/canary-agent/internal/diff"
	"github.com/canaryhq/canary-agent/internal/metrics"
	"github.com/canaryhq/canary-agent/internal/plugin"
	"github.com/canaryhq/canary-agent/internal/remote"
	"github.com/canaryhq/canary-agent/internal/resilience"
	"github.com/canaryhq/canary-agent/internal/runner"
	"github.com/canaryhq/canary-agent/internal/settings"
)

// previousEntry is PreviousState's per-plugin value: exactly one of
// Snapshot or Error is populated, mirroring a plugin's collect-fail,
// collect-ok state machine across ticks.
type previousEntry struct {
	snapshot plugin.Snapshot
	errRec   *plugin.ErrorRecord
}

func (e previousEntry) isError() bool { return e.errRec != nil }

// Loop is the Collection Loop.
type Loop struct {
	Registry *plugin.Registry
	Runner   *runner.Runner
	Client   *remote.Client
	Store    *settings.Store
	Metrics  *metrics.Registry
	Logger   *slog.Logger

	Hostname     string
	AgentVersion string

	previousState map[string]previousEntry
	errorHistory  *errorHistory
	tick          int
	lastStatus    Status
}

// Status is the point-in-time tick outcome, surfaced to internal/debugserver.
type Status struct {
	LastTickAt       time.Time
	LastTickOK       bool
	CollectIntervalS int
	ActivePlugins    []string
}

// New builds a Loop ready for Init.
func New(registry *plugin.Registry, client *remote.Client, store *settings.Store, m *metrics.Registry, logger *slog.Logger, hostname, agentVersion string) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		Registry:      registry,
		Runner:        runner.New(logger, m),
		Client:        client,
		Store:         store,
		Metrics:       m,
		Logger:        logger,
		Hostname:      hostname,
		AgentVersion:  agentVersion,
		previousState: make(map[string]previousEntry),
		errorHistory:  newErrorHistory(),
	}
}

// Init performs the one-shot bootstrap sequence: ping, enumerate/prepare/
// collect every plugin, build and post the initial sync batch (suppressing
// collection errors), merge the returned settings, and seed PreviousState
// with the successful snapshots.
func (l *Loop) Init(ctx context.Context) error {
	cfg := l.Store.Snapshot()

	pingBackoff := &resilience.Backoff{Logger: l.Logger, Metrics: l.Metrics.Backoff}
	if err := pingBackoff.Retry(ctx, func() error {
		ok, err := l.Client.Ping(ctx, cfg)
		if err != nil {
			return err
		}
		if !ok {
			return &remote.ApiError{StatusCode: 0, Name: "ping did not return pong"}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("collector: init ping: %w", err)
	}

	timeout := runner.Timeout(cfg.CollectIntervalS)
	states := make(map[string]interface{})

	for _, p := range l.Registry.All() {
		outcome := l.Runner.Run(ctx, p, cfg, timeout)
		if outcome.Excluded || outcome.Error != nil {
			// Errors are suppressed on initial sync: the agent often starts
			// before its dependencies are up, and the next tick will
			// surface any real, persistent failure.
			continue
		}
		states[p.Name()] = outcome.Snapshot
		l.previousState[p.Name()] = previousEntry{snapshot: outcome.Snapshot}
	}

	syncBackoff := &resilience.Backoff{Logger: l.Logger, Metrics: l.Metrics.Backoff}
	patch, err := resilience.RetryValue(ctx, syncBackoff, func() (map[string]interface{}, error) {
		return l.Client.Sync(ctx, l.Hostname, l.AgentVersion, states, cfg)
	})
	if err != nil {
		return fmt.Errorf("collector: init sync: %w", err)
	}

	if changed := l.Store.Update(patch); len(changed) > 0 {
		l.Logger.Info("settings updated from initial sync", "changed", changed)
	}

	return nil
}

// Run executes the steady-state tick loop until ctx is cancelled, at which
// point it sends a best-effort shutdown notification and returns.
func (l *Loop) Run(ctx context.Context) error {
	cfg := l.Store.Snapshot()
	interval := cfg.CollectInterval()
	if interval <= 0 {
		interval = 30 * time.Second
	}

	l.tick = 1

	for {
		t0 := time.Now()

		if ctx.Err() != nil {
			l.shutdown()
			return nil
		}

		l.runTick(ctx, t0)

		cfg = l.Store.Snapshot()
		interval = cfg.CollectInterval()
		if interval <= 0 {
			interval = 30 * time.Second
		}

		deadline := t0.Add(interval)
		wait := time.Until(deadline)
		if wait < 0 {
			// Tick overran: proceed immediately, no catch-up burst.
			l.tick++
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			l.shutdown()
			return nil
		}

		l.tick++
	}
}

func (l *Loop) runTick(ctx context.Context, t0 time.Time) {
	cfg := l.Store.Snapshot()

	slowEvery := 1
	if cfg.CollectIntervalS > 0 {
		if n := cfg.SlowCollectIntervalS / cfg.CollectIntervalS; n > 0 {
			slowEvery = n
		}
	}
	includeSlow := l.tick%slowEvery == 0

	active := l.Registry.Active(includeSlow)
	timeout := runner.Timeout(cfg.CollectIntervalS)

	batch := remote.Batch{}
	activeNames := make([]string, 0, len(active))

	for _, p := range active {
		name := p.Name()
		activeNames = append(activeNames, name)

		outcome := l.Runner.Run(ctx, p, cfg, timeout)
		if outcome.Excluded {
			continue
		}

		var payload remote.StatusPayload

		switch {
		case outcome.Error != nil:
			payload = remote.ErrorPayload(*outcome.Error)
			l.previousState[name] = previousEntry{errRec: outcome.Error}
			l.errorHistory.Record(name, *outcome.Error)

		default:
			prev, existed := l.previousState[name]
			if !existed || prev.isError() {
				payload = remote.Sync(outcome.Snapshot)
			} else {
				changes := diff.Compute(p, outcome.Snapshot, prev.snapshot)
				payload = remote.Diff(changes)
			}
			l.previousState[name] = previousEntry{snapshot: outcome.Snapshot}
		}

		batch[name] = append(batch[name], payload)

		if events := p.PendingEvents(); len(events) > 0 {
			batch[name] = append(batch[name], remote.EventsPayload(events))
		}
	}

	uploadBackoff := &resilience.Backoff{
		MaxWait: cfg.CollectInterval(),
		Logger:  l.Logger,
		Metrics: l.Metrics.Backoff,
	}
	patch, err := resilience.RetryValue(ctx, uploadBackoff, func() (map[string]interface{}, error) {
		return l.Client.UploadChanges(ctx, batch, cfg)
	})

	ok := err == nil
	if err != nil {
		l.Logger.Error("tick upload failed permanently", "error", err)
	} else if changed := l.Store.Update(patch); len(changed) > 0 {
		l.Logger.Info("settings updated", "changed", changed)
	}

	if l.Metrics != nil {
		l.Metrics.TickDuration.Observe(time.Since(t0).Seconds())
	}

	l.lastStatus = Status{
		LastTickAt:       t0,
		LastTickOK:       ok,
		CollectIntervalS: cfg.CollectIntervalS,
		ActivePlugins:    activeNames,
	}
}

// LastStatus reports the most recently completed tick's outcome, for
// internal/debugserver.
func (l *Loop) LastStatus() Status { return l.lastStatus }

// RecentErrors returns pluginName's bounded recent-failure history, for an
// operator debug dump.
func (l *Loop) RecentErrors(pluginName string) []plugin.ErrorRecord {
	return l.errorHistory.Recent(pluginName)
}

// shutdown sends a best-effort, no-retry shutdown notification. Any error
// is logged, never fatal: the process is exiting regardless.
func (l *Loop) shutdown() {
	l.Logger.Info("shutting down, notifying server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := l.Client.Shutdown(shutdownCtx, l.Store.Snapshot()); err != nil {
		l.Logger.Warn("shutdown notification failed", "error", err)
	}
}

// ExitCode is 0 for a graceful shutdown.
const ExitCode = 0
