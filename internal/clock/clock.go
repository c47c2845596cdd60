// Package clock abstracts time so that reconnect and expiry logic can be
// driven deterministically in tests.
package clock

import "time"

// Clock is the subset of the time package used by resourcekit. Production
// code takes Real(); tests take Fake() and advance it explicitly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTimer returns a Timer that delivers on C once d has elapsed.
	NewTimer(d time.Duration) *Timer

	// NewTicker returns a Ticker that delivers on C every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer wraps a one-shot timer.
type Timer struct {
	C <-chan time.Time

	stopFunc func() bool
}

// Stop prevents the Timer from firing. It reports whether the call stopped
// a pending timer.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Ticker wraps a periodic timer. Ticks that the reader misses are dropped.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. C is not closed.
func (t *Ticker) Stop() { t.stopFunc() }
