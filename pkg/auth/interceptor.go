package auth

import (
	"context"
	"io"
	"log/slog"

	"github.com/fgrzl/resourcekit/pkg/api"
)

// Interceptor wraps a stream provider and reports authentication failures,
// whether raised when the stream opens or while it is being read. The hook
// runs on its own goroutine; the error still reaches the caller unchanged.
type Interceptor struct {
	next          api.BidiStreamProvider
	onAuthFailure func(error)
	logger        *slog.Logger
}

// NewInterceptor returns a provider that calls onAuthFailure for every
// PermissionDenied or Unauthenticated error. A nil hook only logs.
func NewInterceptor(next api.BidiStreamProvider, onAuthFailure func(error)) *Interceptor {
	return &Interceptor{
		next:          next,
		onAuthFailure: onAuthFailure,
		logger:        slog.Default(),
	}
}

func (i *Interceptor) CallStream(ctx context.Context, msg api.Routeable) (api.BidiStream, error) {
	stream, err := i.next.CallStream(ctx, msg)
	if err != nil {
		i.inspect(err)
		return nil, err
	}
	return &interceptedStream{BidiStream: stream, inspect: i.inspect}, nil
}

// Close closes the wrapped provider when it supports closing.
func (i *Interceptor) Close() error {
	if c, ok := i.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (i *Interceptor) inspect(err error) {
	if !api.IsAuthError(err) {
		return
	}
	i.logger.Warn("auth: backend rejected credentials", slog.String("error", err.Error()))
	if i.onAuthFailure != nil {
		go i.onAuthFailure(err)
	}
}

type interceptedStream struct {
	api.BidiStream
	inspect func(error)
}

func (s *interceptedStream) Decode(m any) error {
	err := s.BidiStream.Decode(m)
	if err != nil {
		s.inspect(err)
	}
	return err
}
