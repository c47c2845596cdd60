package resource

import "time"

// Value is a resource holding the latest decoded message of a stream.
type Value[T any] struct {
	base
	value    T
	hasValue bool
}

// ValueSnapshot is a consistent copy of a Value's fields.
type ValueSnapshot[T any] struct {
	Loading     bool
	Value       T
	HasValue    bool
	StreamError error
	UpdateTime  time.Time
}

// NewValue returns an empty Value in the loading state.
func NewValue[T any](opts ...Option) *Value[T] {
	return &Value[T]{base: newBase(opts)}
}

// Set replaces the value, clears loading and the stream error, and stamps
// the wall clock. There is no merge: the last write wins.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	v.value = val
	v.hasValue = true
	v.loading = false
	v.err = nil
	v.updateTime = v.clock.Now()
	v.mu.Unlock()
	v.notify()
}

// Receive implements Sink.
func (v *Value[T]) Receive(val T) { v.Set(val) }

// Get returns the current value and whether one has been received.
func (v *Value[T]) Get() (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value, v.hasValue
}

func (v *Value[T]) Snapshot() ValueSnapshot[T] {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return ValueSnapshot[T]{
		Loading:     v.loading,
		Value:       v.value,
		HasValue:    v.hasValue,
		StreamError: v.err,
		UpdateTime:  v.updateTime,
	}
}
