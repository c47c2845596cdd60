package resource

import "context"

// Stream is one open server stream. Recv blocks until the next message,
// returning io.EOF when the server ends the stream gracefully and any other
// error on failure. Cancel is idempotent and unblocks a pending Recv.
type Stream[T any] interface {
	Recv() (T, error)
	Cancel()
}

// Source opens streams for a puller.
type Source[T any] struct {
	// Resolve returns the endpoint to connect to. Optional; a nil Resolve
	// yields the empty endpoint. Failures are retried like stream errors.
	Resolve func(ctx context.Context) (string, error)

	// Open opens a stream against endpoint.
	Open func(ctx context.Context, endpoint string) (Stream[T], error)
}

func (s Source[T]) resolve(ctx context.Context) (string, error) {
	if s.Resolve == nil {
		return "", nil
	}
	return s.Resolve(ctx)
}

// Sink receives the output of a puller. *Value[T] is a Sink[T] and
// *Collection[K, T] is a Sink[Change[T]].
type Sink[T any] interface {
	Receive(T)
	SetError(error)
}

// Canceler is anything a Scope can tear down.
type Canceler interface {
	Cancel()
}

// attacher is implemented by the built-in resources so their Stream field
// points at the watch feeding them.
type attacher interface {
	attach(*Watch)
}

// MapStream adapts a Stream of one type into a Stream of another.
func MapStream[From, To any](s Stream[From], fn func(From) (To, error)) Stream[To] {
	return &mappedStream[From, To]{inner: s, fn: fn}
}

type mappedStream[From, To any] struct {
	inner Stream[From]
	fn    func(From) (To, error)
}

func (m *mappedStream[From, To]) Recv() (To, error) {
	v, err := m.inner.Recv()
	if err != nil {
		var zero To
		return zero, err
	}
	return m.fn(v)
}

func (m *mappedStream[From, To]) Cancel() { m.inner.Cancel() }
