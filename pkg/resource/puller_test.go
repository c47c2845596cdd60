package resource

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/fgrzl/resourcekit/internal/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recvResult[T any] struct {
	value T
	err   error
}

type fakeStream[T any] struct {
	results   chan recvResult[T]
	cancelled chan struct{}
	once      sync.Once
}

func newFakeStream[T any]() *fakeStream[T] {
	return &fakeStream[T]{
		results:   make(chan recvResult[T], 16),
		cancelled: make(chan struct{}),
	}
}

func (s *fakeStream[T]) Recv() (T, error) {
	select {
	case r := <-s.results:
		return r.value, r.err
	case <-s.cancelled:
		var zero T
		return zero, context.Canceled
	}
}

func (s *fakeStream[T]) Cancel() { s.once.Do(func() { close(s.cancelled) }) }

func (s *fakeStream[T]) isCancelled() bool {
	select {
	case <-s.cancelled:
		return true
	default:
		return false
	}
}

func (s *fakeStream[T]) send(v T)       { s.results <- recvResult[T]{value: v} }
func (s *fakeStream[T]) fail(err error) { s.results <- recvResult[T]{err: err} }
func (s *fakeStream[T]) end()           { s.fail(io.EOF) }

// harness hands out scripted streams and records watch events.
type harness[T any] struct {
	t      *testing.T
	clock  *clock.FakeClock
	events chan Event

	mu      sync.Mutex
	script  []func() (Stream[T], error)
	opened  []*fakeStream[T]
	overlap bool
}

func newHarness[T any](t *testing.T) *harness[T] {
	return &harness[T]{
		t:      t,
		clock:  clock.Fake(epoch),
		events: make(chan Event, 256),
	}
}

func (h *harness[T]) failOpen(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.script = append(h.script, func() (Stream[T], error) { return nil, err })
}

func (h *harness[T]) succeed() *fakeStream[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := newFakeStream[T]()
	h.script = append(h.script, func() (Stream[T], error) {
		h.opened = append(h.opened, s)
		return s, nil
	})
	return s
}

func (h *harness[T]) source() Source[T] {
	return Source[T]{
		Open: func(ctx context.Context, endpoint string) (Stream[T], error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			for _, s := range h.opened {
				if !s.isCancelled() {
					h.overlap = true
				}
			}
			if len(h.script) == 0 {
				return nil, errors.New("no stream scripted")
			}
			next := h.script[0]
			h.script = h.script[1:]
			return next()
		},
	}
}

func (h *harness[T]) options(extra ...PullOption) []PullOption {
	return append([]PullOption{
		WithClock(h.clock),
		WithObserver(func(e Event) { h.events <- e }),
	}, extra...)
}

func (h *harness[T]) await(kind EventKind) Event {
	h.t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-h.events:
			if e.Kind == kind {
				return e
			}
		case <-timeout:
			h.t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func TestPullRetries(t *testing.T) {
	t.Run("should record the error and back off to the ceiling when open always fails", func(t *testing.T) {
		// Arrange
		h := newHarness[int](t)
		boom := errors.New("unavailable")
		for range 8 {
			h.failOpen(boom)
		}
		v := NewValue[int]()

		// Act
		w := Pull(t.Context(), "lights", v, h.source(), h.options()...)
		defer w.Cancel()
		var delays []time.Duration
		for range 7 {
			e := h.await(RetryScheduled)
			delays = append(delays, e.Delay)
			h.clock.Advance(e.Delay)
		}

		// Assert
		assert.Equal(t, []time.Duration{
			time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
			15 * time.Second, 15 * time.Second, 15 * time.Second,
		}, delays)
		snap := v.Snapshot()
		assert.False(t, snap.Loading)
		assert.ErrorIs(t, snap.StreamError, boom)
		assert.Same(t, w, v.Stream())
	})

	t.Run("should show the value and retry at the floor after data then end", func(t *testing.T) {
		// Arrange
		h := newHarness[int](t)
		h.failOpen(errors.New("unavailable"))
		h.failOpen(errors.New("unavailable"))
		stream := h.succeed()
		h.succeed()
		v := NewValue[int]()

		// Act
		w := Pull(t.Context(), "lights", v, h.source(), h.options()...)
		defer w.Cancel()
		first := h.await(RetryScheduled)
		h.clock.Advance(first.Delay)
		second := h.await(RetryScheduled)
		h.clock.Advance(second.Delay)
		h.await(Connected)
		stream.send(42)
		h.await(DataReceived)
		stream.end()
		h.await(EndReceived)
		retry := h.await(RetryScheduled)

		// Assert
		assert.Equal(t, 2*time.Second, second.Delay)
		assert.Equal(t, time.Second, retry.Delay)
		got, ok := v.Get()
		require.True(t, ok)
		assert.Equal(t, 42, got)
		assert.Equal(t, RetryWait, w.State())
	})

	t.Run("should not record an error when the stream ends", func(t *testing.T) {
		// Arrange
		h := newHarness[int](t)
		stream := h.succeed()
		v := NewValue[int]()

		// Act
		w := Pull(t.Context(), "lights", v, h.source(), h.options()...)
		defer w.Cancel()
		h.await(Connected)
		stream.end()
		h.await(RetryScheduled)

		// Assert
		snap := v.Snapshot()
		assert.True(t, snap.Loading)
		assert.NoError(t, snap.StreamError)
	})

	t.Run("should keep a stale error until data arrives", func(t *testing.T) {
		// Arrange
		h := newHarness[int](t)
		boom := errors.New("unavailable")
		h.failOpen(boom)
		stream := h.succeed()
		v := NewValue[int]()

		// Act
		w := Pull(t.Context(), "lights", v, h.source(), h.options()...)
		defer w.Cancel()
		e := h.await(RetryScheduled)
		h.clock.Advance(e.Delay)
		h.await(Connected)
		afterReconnect := v.Snapshot().StreamError
		stream.send(1)
		h.await(DataReceived)

		// Assert
		assert.ErrorIs(t, afterReconnect, boom)
		assert.NoError(t, v.Snapshot().StreamError)
	})

	t.Run("should treat a resolve failure like a stream error", func(t *testing.T) {
		// Arrange
		h := newHarness[int](t)
		boom := errors.New("config fetch failed")
		v := NewValue[int]()
		src := h.source()
		src.Resolve = func(ctx context.Context) (string, error) { return "", boom }

		// Act
		w := Pull(t.Context(), "lights", v, src, h.options()...)
		defer w.Cancel()
		failed := h.await(ErrorReceived)
		h.await(RetryScheduled)

		// Assert
		assert.ErrorIs(t, failed.Err, boom)
		assert.ErrorIs(t, v.Snapshot().StreamError, boom)
	})

	t.Run("should never hold two streams at once", func(t *testing.T) {
		// Arrange
		h := newHarness[int](t)
		streams := []*fakeStream[int]{h.succeed(), h.succeed(), h.succeed()}
		h.succeed()
		v := NewValue[int]()

		// Act
		w := Pull(t.Context(), "lights", v, h.source(), h.options()...)
		defer w.Cancel()
		for i, s := range streams {
			h.await(Connected)
			s.send(i)
			h.await(DataReceived)
			s.fail(errors.New("reset"))
			e := h.await(RetryScheduled)
			assert.Equal(t, time.Second, e.Delay)
			h.clock.Advance(e.Delay)
		}
		h.await(Connected)

		// Assert
		h.mu.Lock()
		defer h.mu.Unlock()
		assert.False(t, h.overlap)
		assert.Len(t, h.opened, 4)
	})
}

func TestPullCancel(t *testing.T) {
	t.Run("should process nothing when cancelled right after subscribing", func(t *testing.T) {
		// Arrange
		h := newHarness[int](t)
		stream := h.succeed()
		v := NewValue[int]()

		// Act
		w := Pull(t.Context(), "lights", v, h.source(), h.options()...)
		w.Cancel()
		stream.send(1)
		<-w.Done()
		h.clock.Advance(time.Hour)

		// Assert
		snap := v.Snapshot()
		assert.True(t, snap.Loading)
		assert.False(t, snap.HasValue)
		assert.Equal(t, Cancelled, w.State())
		assert.Equal(t, 0, h.clock.PendingCount())
	})

	t.Run("should stop a pending retry", func(t *testing.T) {
		// Arrange
		h := newHarness[int](t)
		h.failOpen(errors.New("unavailable"))
		v := NewValue[int]()
		w := Pull(t.Context(), "lights", v, h.source(), h.options()...)
		h.await(RetryScheduled)

		// Act
		w.Cancel()
		<-w.Done()
		h.clock.Advance(time.Hour)

		// Assert
		assert.Equal(t, Cancelled, w.State())
		assert.Equal(t, 0, h.clock.PendingCount())
	})

	t.Run("should cancel the live stream and be idempotent", func(t *testing.T) {
		// Arrange
		h := newHarness[int](t)
		stream := h.succeed()
		v := NewValue[int]()
		w := Pull(t.Context(), "lights", v, h.source(), h.options()...)
		h.await(Connected)

		// Act
		w.Cancel()
		w.Cancel()
		<-w.Done()

		// Assert
		assert.True(t, stream.isCancelled())
		assert.Equal(t, CancelRequested, h.await(CancelRequested).Kind)
		assert.True(t, v.Snapshot().Loading)
	})

	t.Run("should stop when the parent context is done", func(t *testing.T) {
		// Arrange
		h := newHarness[int](t)
		stream := h.succeed()
		ctx, cancel := context.WithCancel(t.Context())
		w := Pull(ctx, "lights", NewValue[int](), h.source(), h.options()...)
		h.await(Connected)

		// Act
		cancel()
		<-w.Done()

		// Assert
		assert.True(t, stream.isCancelled())
		assert.Equal(t, Cancelled, w.State())
	})

	t.Run("should detach through a scope", func(t *testing.T) {
		// Arrange
		h := newHarness[light](t)
		stream := h.succeed()
		scope := NewScope()
		c := NewCollection(lightID)
		src := Source[Change[light]]{
			Open: func(ctx context.Context, endpoint string) (Stream[Change[light]], error) {
				inner, err := h.source().Open(ctx, endpoint)
				if err != nil {
					return nil, err
				}
				return MapStream(inner, func(l light) (Change[light], error) {
					return Change[light]{NewValue: &l}, nil
				}), nil
			},
		}
		w := Pull(t.Context(), "fixtures", c, src, h.options()...)
		scope.Add(w)
		h.await(Connected)
		stream.send(light{ID: "a", Level: 3})
		h.await(DataReceived)

		// Act
		scope.Dispose()
		<-w.Done()

		// Assert
		assert.True(t, stream.isCancelled())
		assert.Equal(t, map[string]light{"a": {ID: "a", Level: 3}}, c.Snapshot().Value)
	})
}

func TestPullMetrics(t *testing.T) {
	t.Run("should count connects, messages and retries", func(t *testing.T) {
		// Arrange
		h := newHarness[int](t)
		stream := h.succeed()
		m := NewMetrics(prometheus.NewRegistry())
		v := NewValue[int]()

		// Act
		w := Pull(t.Context(), "lights", v, h.source(), h.options(WithMetrics(m))...)
		defer w.Cancel()
		h.await(Connected)
		stream.send(1)
		stream.send(2)
		h.await(DataReceived)
		h.await(DataReceived)
		stream.fail(errors.New("reset"))
		h.await(RetryScheduled)

		// Assert
		assert.Equal(t, 1.0, testutil.ToFloat64(m.connects.WithLabelValues("lights")))
		assert.Equal(t, 2.0, testutil.ToFloat64(m.messages.WithLabelValues("lights")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.streamErrors.WithLabelValues("lights")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.retries.WithLabelValues("lights")))
		assert.Equal(t, 0.0, testutil.ToFloat64(m.live.WithLabelValues("lights")))
	})
}
