package resource

import (
	"maps"
	"time"
)

// Change is a delta on a keyed collection. If NewValue is set the item is
// upserted by its id; otherwise, if OldValue is set, the item is removed.
type Change[T any] struct {
	OldValue   *T
	NewValue   *T
	ChangeTime time.Time
}

// Collection is a resource holding a keyed set of items.
type Collection[K comparable, T any] struct {
	base
	id    func(T) K
	items map[K]T
}

// CollectionSnapshot is a consistent copy of a Collection's fields. Value is
// a private copy and may be modified by the caller.
type CollectionSnapshot[K comparable, T any] struct {
	Loading     bool
	Value       map[K]T
	StreamError error
	UpdateTime  time.Time
}

// NewCollection returns an empty Collection in the loading state. id maps
// an item to its key.
func NewCollection[K comparable, T any](id func(T) K, opts ...Option) *Collection[K, T] {
	return &Collection[K, T]{
		base:  newBase(opts),
		id:    id,
		items: make(map[K]T),
	}
}

// Apply upserts or deletes according to change, clears loading and the
// stream error, and stamps UpdateTime from the change (wall clock if unset).
func (c *Collection[K, T]) Apply(change Change[T]) {
	c.mu.Lock()
	switch {
	case change.NewValue != nil:
		c.items[c.id(*change.NewValue)] = *change.NewValue
	case change.OldValue != nil:
		delete(c.items, c.id(*change.OldValue))
	}
	c.loading = false
	c.err = nil
	if change.ChangeTime.IsZero() {
		c.updateTime = c.clock.Now()
	} else {
		c.updateTime = change.ChangeTime
	}
	c.mu.Unlock()
	c.notify()
}

// Receive implements Sink.
func (c *Collection[K, T]) Receive(change Change[T]) { c.Apply(change) }

func (c *Collection[K, T]) Get(key K) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[key]
	return item, ok
}

func (c *Collection[K, T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Collection[K, T]) Snapshot() CollectionSnapshot[K, T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CollectionSnapshot[K, T]{
		Loading:     c.loading,
		Value:       maps.Clone(c.items),
		StreamError: c.err,
		UpdateTime:  c.updateTime,
	}
}
