package pebble

import (
	"bytes"
	"context"

	"github.com/cockroachdb/pebble/v2"
	"github.com/fgrzl/enumerators"
)

type KeyValuePair struct {
	Key   []byte
	Value []byte
}

// NewPebbleEnumerator iterates the keys within opts' bounds in order. The
// iterator is opened lazily and released by Dispose.
func NewPebbleEnumerator(ctx context.Context, db *pebble.DB, opts *pebble.IterOptions) enumerators.Enumerator[KeyValuePair] {
	return &pebbleEnumerator{ctx: ctx, db: db, opts: opts}
}

type pebbleEnumerator struct {
	ctx     context.Context
	db      *pebble.DB
	opts    *pebble.IterOptions
	iter    *pebble.Iterator
	current KeyValuePair
	err     error
	done    bool
}

func (e *pebbleEnumerator) MoveNext() bool {
	if e.done {
		return false
	}

	if err := e.ctx.Err(); err != nil {
		return e.fail(err)
	}

	var valid bool
	if e.iter == nil {
		iter, err := e.db.NewIterWithContext(e.ctx, e.opts)
		if err != nil {
			return e.fail(err)
		}
		e.iter = iter
		valid = iter.First()
	} else {
		valid = e.iter.Next()
	}

	if !valid {
		e.done = true
		if err := e.iter.Error(); err != nil {
			e.err = err
			return true
		}
		return false
	}

	// the iterator reuses its buffers
	e.current = KeyValuePair{
		Key:   bytes.Clone(e.iter.Key()),
		Value: bytes.Clone(e.iter.Value()),
	}
	return true
}

func (e *pebbleEnumerator) fail(err error) bool {
	e.done = true
	e.err = err
	return true
}

func (e *pebbleEnumerator) Current() (KeyValuePair, error) {
	if e.err != nil {
		return KeyValuePair{}, e.err
	}
	return e.current, nil
}

func (e *pebbleEnumerator) Err() error {
	return e.err
}

func (e *pebbleEnumerator) Dispose() {
	if e.iter != nil {
		_ = e.iter.Close()
		e.iter = nil
	}
	e.done = true
}
