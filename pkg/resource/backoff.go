package resource

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultFloor   = 1000 * time.Millisecond
	DefaultCeiling = 15000 * time.Millisecond
)

// Backoff bounds the delay between reconnect attempts. The first retry
// waits Floor; each consecutive failure doubles the delay up to Ceiling.
type Backoff struct {
	Floor   time.Duration
	Ceiling time.Duration
}

// DefaultBackoff is 1s doubling to 15s.
func DefaultBackoff() Backoff {
	return Backoff{Floor: DefaultFloor, Ceiling: DefaultCeiling}
}

func (b Backoff) normalize() Backoff {
	if b.Floor <= 0 {
		b.Floor = DefaultFloor
	}
	if b.Ceiling < b.Floor {
		b.Ceiling = b.Floor
	}
	return b
}

// newSchedule returns the delay sequence for one watch. Only the watch
// goroutine touches it; timers stay on the watch's clock.
func newSchedule(b Backoff) *backoff.ExponentialBackOff {
	b = b.normalize()
	s := &backoff.ExponentialBackOff{
		InitialInterval:     b.Floor,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         b.Ceiling,
	}
	s.Reset()
	return s
}
