package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fgrzl/resourcekit/internal/clock"
	"github.com/fgrzl/resourcekit/pkg/auth/jwtkit"
)

const DefaultSkew = 30 * time.Second

type RefreshOption func(*RefreshingTokenSource)

func WithRefreshClock(c clock.Clock) RefreshOption {
	return func(s *RefreshingTokenSource) {
		s.clock = c
	}
}

// WithSkew sets how long before exp a token is considered stale.
func WithSkew(d time.Duration) RefreshOption {
	return func(s *RefreshingTokenSource) {
		s.skew = d
	}
}

func WithRefreshLogger(l *slog.Logger) RefreshOption {
	return func(s *RefreshingTokenSource) {
		s.logger = l
	}
}

// RefreshingTokenSource caches the token returned by an upstream source and
// fetches a new one once it is within the skew window of its exp claim.
// Tokens that are not JWTs, or carry no exp, are cached until invalidated.
type RefreshingTokenSource struct {
	upstream TokenSource
	clock    clock.Clock
	skew     time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewRefreshingTokenSource(upstream TokenSource, opts ...RefreshOption) *RefreshingTokenSource {
	s := &RefreshingTokenSource{
		upstream: upstream,
		clock:    clock.Real(),
		skew:     DefaultSkew,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RefreshingTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && !s.stale() {
		return s.token, nil
	}

	token, err := s.upstream.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("auth: refresh token: %w", err)
	}

	expiry, err := jwtkit.ParseExpiry(token)
	if err != nil {
		s.logger.DebugContext(ctx, "auth: token has no readable expiry", slog.String("error", err.Error()))
		expiry = time.Time{}
	}

	s.token = token
	s.expiry = expiry
	s.logger.DebugContext(ctx, "auth: token refreshed", slog.Time("expiry", expiry))
	return token, nil
}

// Invalidate drops the cached token so the next call fetches a new one.
func (s *RefreshingTokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.expiry = time.Time{}
	s.mu.Unlock()
}

func (s *RefreshingTokenSource) stale() bool {
	if s.expiry.IsZero() {
		return false
	}
	return !s.clock.Now().Add(s.skew).Before(s.expiry)
}
