// Package metrics exposes the agent's Prometheus instrumentation: tick
// duration, per-plugin outcome counts, backoff wait time, and remote call
// latency, as a small struct of pre-registered collectors handed out
// through a constructor rather than relying on the global default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every collector the agent exposes, registered against a
// single prometheus.Registerer so callers can mount it under any path.
type Registry struct {
	TickDuration   prometheus.Histogram
	PluginOutcome  *prometheus.CounterVec
	PluginDuration *prometheus.HistogramVec
	Backoff        *BackoffMetrics
	Remote         *RemoteMetrics
}

// NewRegistry builds and registers every collector against reg. Passing a
// fresh prometheus.NewRegistry() (rather than prometheus.DefaultRegisterer)
// keeps tests hermetic.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "canaryd",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of one collection loop tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		PluginOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "canaryd",
			Name:      "plugin_outcomes_total",
			Help:      "Count of plugin collection outcomes by plugin and status.",
		}, []string{"plugin", "status"}),
		PluginDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "canaryd",
			Name:      "plugin_collect_duration_seconds",
			Help:      "Duration of a single plugin's Collect call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"plugin"}),
		Backoff: newBackoffMetrics(),
		Remote:  newRemoteMetrics(),
	}

	reg.MustRegister(
		r.TickDuration,
		r.PluginOutcome,
		r.PluginDuration,
		r.Backoff.wait,
		r.Remote.requestDuration,
		r.Remote.requestsTotal,
	)

	return r
}

// BackoffMetrics tracks the Backoff Driver's retry wait times.
type BackoffMetrics struct {
	wait prometheus.Histogram
}

func newBackoffMetrics() *BackoffMetrics {
	return &BackoffMetrics{
		wait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "canaryd",
			Name:      "backoff_wait_seconds",
			Help:      "Inter-attempt wait chosen by the backoff driver.",
			Buckets:   []float64{0, 10, 20, 30, 60, 120, 300},
		}),
	}
}

// RecordWait records one chosen backoff delay, in seconds.
func (m *BackoffMetrics) RecordWait(seconds float64) {
	if m == nil {
		return
	}
	m.wait.Observe(seconds)
}

// RemoteMetrics tracks Remote Client call latency and outcomes.
type RemoteMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
}

func newRemoteMetrics() *RemoteMetrics {
	return &RemoteMetrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "canaryd",
			Name:      "remote_request_duration_seconds",
			Help:      "Duration of a remote API call by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "canaryd",
			Name:      "remote_requests_total",
			Help:      "Count of remote API calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
	}
}

// Observe records one remote call's outcome and duration.
func (m *RemoteMetrics) Observe(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(operation).Observe(seconds)
	m.requestsTotal.WithLabelValues(operation, outcome).Inc()
}
