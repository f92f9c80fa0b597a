// Package runner implements the Isolated Plugin Runner: executes one
// plugin's Collect under a deadline, converting both timeouts and panics
// into an ErrorRecord instead of letting them escape to the Collection
// Loop.
//
// Each invocation runs in its own goroutine with a context deadline rather
// than a process-level alarm, so timeouts compose cleanly with whatever
// subprocess or I/O the plugin itself waits on; a recovered panic becomes
// a typed failure result instead of crashing the loop.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/canaryhq/canary-agent/internal/metrics"
	"github.com/canaryhq/canary-agent/internal/plugin"
)

// Outcome is the result of running one plugin once. Excluded means prepare
// failed and the plugin should be skipped this tick entirely (no payload,
// no PreviousState update); otherwise exactly one of Snapshot or Error is
// populated.
type Outcome struct {
	Excluded bool
	Snapshot plugin.Snapshot
	Error    *plugin.ErrorRecord
}

// Timeout returns the per-plugin ceiling for a given collect_interval_s:
// max(floor(collect_interval_s/2), 1) seconds. A timeout is a ceiling, not
// a target — well-behaved plugins return in milliseconds.
func Timeout(collectIntervalS int) time.Duration {
	half := collectIntervalS / 2
	if half < 1 {
		half = 1
	}
	return time.Duration(half) * time.Second
}

// Runner executes plugins in isolation.
type Runner struct {
	Logger  *slog.Logger
	Metrics *metrics.Registry
}

// New builds a Runner.
func New(logger *slog.Logger, m *metrics.Registry) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Logger: logger, Metrics: m}
}

// Run executes p.Prepare then p.Collect under a deadline derived from
// timeout. A plugin that doesn't return within timeout is reported as a
// timeout ErrorRecord; the goroutine running it is abandoned (it may still
// be executing when Run returns, since a goroutine cannot be stopped from
// outside).
// True cancellation relies on the plugin itself being context-aware.
func (r *Runner) Run(ctx context.Context, p plugin.Plugin, settings plugin.SettingsView, timeout time.Duration) Outcome {
	start := time.Now()
	name := p.Name()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.Prepare(runCtx, settings); err != nil {
		r.Logger.Info("plugin prepare failed, excluding from this tick",
			"plugin", name, "error", err)
		r.observe(name, "prepared_out", time.Since(start))
		return Outcome{Excluded: true}
	}

	type result struct {
		snap      plugin.Snapshot
		err       error
		traceback string
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- result{
					err:       fmt.Errorf("plugin panicked: %v", rec),
					traceback: string(debug.Stack()),
				}
			}
		}()
		snap, err := p.Collect(runCtx, settings)
		done <- result{snap: snap, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			r.Logger.Warn("plugin collection failed", "plugin", name, "error", res.err)
			r.observe(name, "error", time.Since(start))
			return Outcome{Error: &plugin.ErrorRecord{
				ClassName: "CollectError",
				Message:   res.err.Error(),
				Traceback: errTraceback(res.traceback),
			}}
		}

		if err := plugin.ValidateSnapshot(r.Logger, name, p.Spec(), res.snap); err != nil {
			r.Logger.Warn("plugin snapshot failed validation", "plugin", name, "error", err)
			r.observe(name, "invalid", time.Since(start))
			return Outcome{Error: &plugin.ErrorRecord{
				ClassName: "ValidationError",
				Message:   err.Error(),
				Traceback: errTraceback(""),
			}}
		}

		r.observe(name, "success", time.Since(start))
		return Outcome{Snapshot: res.snap}

	case <-runCtx.Done():
		r.Logger.Warn("plugin timed out", "plugin", name, "timeout", timeout)
		r.observe(name, "timeout", time.Since(start))
		return Outcome{Error: &plugin.ErrorRecord{
			ClassName: "TimeoutError",
			Message:   fmt.Sprintf("collect exceeded %s", timeout),
			Traceback: errTraceback(""),
		}}
	}
}

func (r *Runner) observe(pluginName, status string, elapsed time.Duration) {
	if r.Metrics == nil {
		return
	}
	r.Metrics.PluginOutcome.WithLabelValues(pluginName, status).Inc()
	r.Metrics.PluginDuration.WithLabelValues(pluginName).Observe(elapsed.Seconds())
}

// errTraceback returns captured for a recovered panic, or the runner's own
// stack at the point the failure was detected otherwise: a Collect error,
// a validation failure, and a timeout all surface without a plugin-side
// stack trace to capture, so the runner's current goroutine stack is
// recorded instead of leaving the wire payload's traceback field empty.
func errTraceback(captured string) string {
	if captured != "" {
		return captured
	}
	return string(debug.Stack())
}
