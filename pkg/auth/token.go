// Package auth supplies bearer tokens to the transport and reacts to
// authentication failures reported by the backend.
package auth

import (
	"context"
	"errors"
)

var ErrNoToken = errors.New("auth: no token available")

// TokenSource returns the bearer token presented when a connection is
// dialled.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken always returns the same token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }
