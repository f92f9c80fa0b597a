// Package eventtail gives a plugin a bounded, non-blocking out-of-band
// event queue: a background producer (e.g. a log-tailing goroutine) pushes
// events as they occur, and the Collection Loop drains whatever has
// accumulated once per tick via Plugin.PendingEvents.
//
// The queue is a bounded channel with non-blocking submit and queue-full
// handling, paired with golang.org/x/time/rate to cap how fast a noisy
// producer (e.g. a log matching every line) can flood it.
package eventtail

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/canaryhq/canary-agent/internal/plugin"
)

// DefaultCapacity bounds the queue when Config.Capacity is zero.
const DefaultCapacity = 256

// Config tunes a Queue's capacity and emission rate.
type Config struct {
	// Capacity is the max number of buffered, undrained events.
	Capacity int
	// RatePerSecond caps sustained push rate; zero means unlimited.
	RatePerSecond float64
	// Burst allows short bursts above RatePerSecond; ignored when
	// RatePerSecond is zero.
	Burst int
}

// Queue is a bounded, thread-safe event buffer. The zero value is not
// usable; construct with New.
type Queue struct {
	ch      chan plugin.Event
	limiter *rate.Limiter
	logger  *slog.Logger
	name    string
}

// New builds a Queue for a plugin named name (used only in log lines).
func New(name string, cfg Config, logger *slog.Logger) *Queue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &Queue{
		ch:      make(chan plugin.Event, cfg.Capacity),
		limiter: limiter,
		logger:  logger,
		name:    name,
	}
}

// Push enqueues ev without blocking. If the limiter is configured and
// denies the event, or the queue is full, the event is dropped and logged
// at warn — a noisy producer must never stall collection.
func (q *Queue) Push(ev plugin.Event) {
	if q.limiter != nil && !q.limiter.Allow() {
		q.logger.Warn("event dropped by rate limiter", "plugin", q.name, "type", ev.Type)
		return
	}

	select {
	case q.ch <- ev:
	default:
		q.logger.Warn("event queue full, dropping event", "plugin", q.name, "type", ev.Type)
	}
}

// Drain returns every event currently buffered without blocking, leaving
// the queue empty. Called once per tick by a Plugin's PendingEvents.
func (q *Queue) Drain() []plugin.Event {
	var out []plugin.Event
	for {
		select {
		case ev := <-q.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// Run is a convenience for a typical producer: it calls produce repeatedly
// until ctx is cancelled, pushing whatever it returns (skipping nils).
// Plugins that tail a log file or watch a fsnotify channel can wrap that
// loop with Run rather than managing their own goroutine lifecycle.
func (q *Queue) Run(ctx context.Context, produce func(ctx context.Context) (*plugin.Event, error)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ev, err := produce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.logger.Warn("event producer error", "plugin", q.name, "error", err)
			continue
		}
		if ev != nil {
			q.Push(*ev)
		}
	}
}
