package resource

import (
	"sync"
	"time"

	"github.com/fgrzl/resourcekit/internal/clock"
)

// Option configures a Value or Collection.
type Option func(*base)

// StampWith sets the clock used for UpdateTime.
func StampWith(c clock.Clock) Option {
	return func(b *base) {
		b.clock = c
	}
}

// base holds the bookkeeping shared by every resource kind. Callers hold mu
// for all field access; subscribers are signalled after mu is released.
type base struct {
	mu         sync.RWMutex
	clock      clock.Clock
	loading    bool
	err        error
	updateTime time.Time
	watch      *Watch
	subs       map[chan struct{}]struct{}
}

func newBase(opts []Option) base {
	b := base{
		clock:   clock.Real(),
		loading: true,
		subs:    make(map[chan struct{}]struct{}),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// Subscribe returns a channel that receives a signal after every mutation.
// Signals coalesce: a slow reader sees one pending signal, not a backlog.
// Call stop to release the subscription.
func (b *base) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
		})
	}
}

// Stream returns the watch that feeds the resource, or nil before Pull.
func (b *base) Stream() *Watch {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.watch
}

func (b *base) attach(w *Watch) {
	b.mu.Lock()
	b.watch = w
	b.mu.Unlock()
}

// SetError clears loading, records err and stamps the wall clock.
func (b *base) SetError(err error) {
	b.mu.Lock()
	b.loading = false
	b.err = err
	b.updateTime = b.clock.Now()
	b.mu.Unlock()
	b.notify()
}

func (b *base) notify() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
