package resource

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("resourcekit")

// Tracker records the state of one-shot calls. Failures are stored and
// returned to the caller; nothing is retried.
type Tracker[R any] struct {
	name string

	mu          sync.RWMutex
	loading     bool
	response    R
	hasResponse bool
	err         error
}

// TrackerSnapshot is a consistent copy of a Tracker's fields.
type TrackerSnapshot[R any] struct {
	Loading     bool
	Response    R
	HasResponse bool
	Err         error
}

func NewTracker[R any](name string) *Tracker[R] {
	return &Tracker[R]{name: name}
}

// Run invokes call with loading raised. The outcome replaces the previous
// one: a success clears the last error and a failure clears the last
// response. Concurrent runs on one tracker are not coordinated; the last one
// to finish wins.
func (t *Tracker[R]) Run(ctx context.Context, call func(context.Context) (R, error)) (R, error) {
	ctx, span := tracer.Start(ctx, "tracker.run",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("resourcekit.action", t.name)))
	defer span.End()

	t.mu.Lock()
	t.loading = true
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.loading = false
		t.mu.Unlock()
	}()

	res, err := call(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var zero R
		t.mu.Lock()
		t.response = zero
		t.hasResponse = false
		t.err = err
		t.mu.Unlock()
		return res, err
	}

	t.mu.Lock()
	t.response = res
	t.hasResponse = true
	t.err = nil
	t.mu.Unlock()
	return res, nil
}

func (t *Tracker[R]) Snapshot() TrackerSnapshot[R] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return TrackerSnapshot[R]{
		Loading:     t.loading,
		Response:    t.response,
		HasResponse: t.hasResponse,
		Err:         t.err,
	}
}

// Reset returns the tracker to its empty state.
func (t *Tracker[R]) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero R
	t.loading = false
	t.response = zero
	t.hasResponse = false
	t.err = nil
}
