package api

import (
	"context"
	"io"
	"sync"

	"github.com/fgrzl/enumerators"
)

// Stream is a typed, receive-only view of a server stream.
type Stream[T any] interface {
	// Recv returns the next message, io.EOF on a clean end, or the stream error.
	Recv() (T, error)
	// Cancel abandons the stream. It is safe to call more than once.
	Cancel()
}

func NewStream[T any](bidi BidiStream) Stream[T] {
	return &typedStream[T]{bidi: bidi}
}

type typedStream[T any] struct {
	bidi BidiStream
	once sync.Once
}

func (s *typedStream[T]) Recv() (T, error) {
	var msg T
	if err := s.bidi.Decode(&msg); err != nil {
		var zero T
		return zero, err
	}
	return msg, nil
}

func (s *typedStream[T]) Cancel() {
	s.once.Do(func() {
		s.bidi.Close(context.Canceled)
	})
}

// NewStreamEnumerator adapts a finite server stream to an enumerator.
// The stream is closed when the enumerator is disposed.
func NewStreamEnumerator[T any](bidi BidiStream) enumerators.Enumerator[T] {
	return &streamEnumerator[T]{bidi: bidi}
}

type streamEnumerator[T any] struct {
	bidi    BidiStream
	current T
	err     error
	done    bool
	once    sync.Once
}

func (e *streamEnumerator[T]) MoveNext() bool {
	if e.done {
		return false
	}
	var msg T
	if err := e.bidi.Decode(&msg); err != nil {
		e.done = true
		if err == io.EOF {
			return false
		}
		// surface the failure through Current on one final step
		var zero T
		e.current, e.err = zero, err
		return true
	}
	e.current = msg
	return true
}

func (e *streamEnumerator[T]) Current() (T, error) {
	return e.current, e.err
}

func (e *streamEnumerator[T]) Err() error {
	return e.err
}

func (e *streamEnumerator[T]) Dispose() {
	e.once.Do(func() {
		e.bidi.Close(nil)
	})
}
