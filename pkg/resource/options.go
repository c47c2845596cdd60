package resource

import (
	"log/slog"

	"github.com/fgrzl/resourcekit/internal/clock"
)

// PullOption configures Pull.
type PullOption func(*pullOptions)

type pullOptions struct {
	clock    clock.Clock
	backoff  Backoff
	logger   *slog.Logger
	metrics  *Metrics
	observer func(Event)
}

func defaultPullOptions() pullOptions {
	return pullOptions{
		clock:   clock.Real(),
		backoff: DefaultBackoff(),
		logger:  slog.Default(),
	}
}

// WithClock sets the clock that drives retry timers.
func WithClock(c clock.Clock) PullOption {
	return func(o *pullOptions) {
		o.clock = c
	}
}

// WithBackoff overrides the retry bounds.
func WithBackoff(b Backoff) PullOption {
	return func(o *pullOptions) {
		o.backoff = b
	}
}

func WithLogger(l *slog.Logger) PullOption {
	return func(o *pullOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithMetrics(m *Metrics) PullOption {
	return func(o *pullOptions) {
		o.metrics = m
	}
}

// WithObserver registers fn to receive every transition of the watch. fn is
// called synchronously from the watch goroutine, except CancelRequested
// which runs on the caller of Cancel, and must not block.
func WithObserver(fn func(Event)) PullOption {
	return func(o *pullOptions) {
		o.observer = fn
	}
}
