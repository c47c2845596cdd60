package resource

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fgrzl/resourcekit/internal/clock"
)

// Watch is the handle to a running puller. At any moment it owns at most one
// open stream or one pending retry timer, never both.
type Watch struct {
	name     string
	ctx      context.Context
	cancel   context.CancelFunc
	clock    clock.Clock
	log      *slog.Logger
	metrics  *Metrics
	observer func(Event)
	done     chan struct{}
	once     sync.Once

	mu        sync.Mutex
	state     State
	cancelled bool
	stream    Canceler
}

// Pull keeps sink fed from src until the returned Watch is cancelled or ctx
// is done. Data resets the backoff and is handed to the sink; errors are
// recorded on the sink and retried; a graceful end is retried silently.
//
// The sink is called from the watch goroutine and must not call Cancel on
// the watch that feeds it.
func Pull[T any](ctx context.Context, name string, sink Sink[T], src Source[T], opts ...PullOption) *Watch {
	o := defaultPullOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &Watch{
		name:     name,
		ctx:      ctx,
		cancel:   cancel,
		clock:    o.clock,
		log:      o.logger.With(slog.String("resource", name)),
		metrics:  o.metrics,
		observer: o.observer,
		done:     make(chan struct{}),
	}
	if a, ok := sink.(attacher); ok {
		a.attach(w)
	}

	stop := context.AfterFunc(ctx, w.Cancel)
	go func() {
		defer close(w.done)
		defer stop()
		run(w, sink, src, newSchedule(o.backoff))
	}()
	return w
}

// Name returns the logging name of the watch.
func (w *Watch) Name() string { return w.name }

// State returns the current state.
func (w *Watch) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Done is closed once the watch goroutine has exited.
func (w *Watch) Done() <-chan struct{} { return w.done }

// Cancel stops all future activity. The open stream, if any, is cancelled
// and no sink mutation happens after Cancel returns. Safe to call
// repeatedly and from any goroutine.
func (w *Watch) Cancel() {
	w.once.Do(func() {
		w.mu.Lock()
		w.cancelled = true
		w.state = Cancelled
		stream := w.stream
		w.stream = nil
		w.mu.Unlock()

		w.cancel()
		if stream != nil {
			stream.Cancel()
		}
		w.log.Debug("puller: cancelled")
		w.emit(Event{Kind: CancelRequested, State: Cancelled})
	})
}

func run[T any](w *Watch, sink Sink[T], src Source[T], delays *backoff.ExponentialBackOff) {
	for {
		if !w.transition(Connecting) {
			return
		}

		stream, err := open(w.ctx, src)
		if err != nil {
			if !w.fail(sink, err) || !w.wait(delays.NextBackOff()) {
				return
			}
			continue
		}

		if !w.bind(stream) {
			stream.Cancel()
			return
		}
		w.metrics.connected(w.name)
		w.log.Debug("puller: connected")
		w.emit(Event{Kind: Connected, State: Live})

		err = drain(w, sink, stream, delays)
		w.unbind(stream)
		w.metrics.disconnected(w.name)

		switch {
		case w.isCancelled():
			return
		case errors.Is(err, io.EOF):
			w.log.Debug("puller: stream ended")
			w.emit(Event{Kind: EndReceived, State: Live})
		default:
			if !w.fail(sink, err) {
				return
			}
		}

		if !w.wait(delays.NextBackOff()) {
			return
		}
	}
}

func open[T any](ctx context.Context, src Source[T]) (Stream[T], error) {
	endpoint, err := src.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return src.Open(ctx, endpoint)
}

// drain delivers messages until the stream fails or ends.
func drain[T any](w *Watch, sink Sink[T], stream Stream[T], delays *backoff.ExponentialBackOff) error {
	for {
		msg, err := stream.Recv()
		if err != nil {
			return err
		}
		delays.Reset()
		if !w.deliver(func() { sink.Receive(msg) }) {
			return context.Canceled
		}
		w.metrics.message(w.name)
		w.emit(Event{Kind: DataReceived, State: Live})
	}
}

// fail records err on the sink. It reports false if the watch was cancelled.
func (w *Watch) fail(sink interface{ SetError(error) }, err error) bool {
	if w.ctx.Err() != nil {
		return false
	}
	if !w.deliver(func() { sink.SetError(err) }) {
		return false
	}
	w.metrics.failure(w.name)
	w.log.Warn("puller: stream failed", slog.String("error", err.Error()))
	w.emit(Event{Kind: ErrorReceived, State: w.State(), Err: err})
	return true
}

// wait arms the retry timer and blocks until it fires or the watch is
// cancelled.
func (w *Watch) wait(delay time.Duration) bool {
	if !w.transition(RetryWait) {
		return false
	}
	timer := w.clock.NewTimer(delay)
	defer timer.Stop()

	w.metrics.retry(w.name)
	w.log.Debug("puller: retry scheduled", slog.Duration("delay", delay))
	w.emit(Event{Kind: RetryScheduled, State: RetryWait, Delay: delay})

	select {
	case <-timer.C:
		return true
	case <-w.ctx.Done():
		return false
	}
}

// deliver runs fn under the watch lock unless the watch is cancelled.
func (w *Watch) deliver(fn func()) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelled {
		return false
	}
	fn()
	return true
}

func (w *Watch) transition(to State) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelled {
		return false
	}
	w.state = to
	return true
}

func (w *Watch) bind(stream Canceler) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelled {
		return false
	}
	w.stream = stream
	w.state = Live
	return true
}

func (w *Watch) unbind(stream Canceler) {
	w.mu.Lock()
	if w.stream == stream {
		w.stream = nil
	}
	w.mu.Unlock()
	stream.Cancel()
}

func (w *Watch) isCancelled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancelled
}

func (w *Watch) emit(e Event) {
	if w.observer == nil {
		return
	}
	e.Resource = w.name
	w.observer(e)
}
