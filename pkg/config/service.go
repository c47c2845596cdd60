// Package config loads the client configuration document and the CLI's
// YAML configuration file.
//
// A Service is constructed explicitly and handed to whatever needs the
// backend endpoint; there is no package-level state. The document is fetched
// once, concurrent callers share the in-flight request, and only a
// successful fetch is cached so that callers retrying after a failure hit
// the network again.
package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const maxDocumentSize = 1 << 20

type ServiceOption func(*Service)

// WithHTTPClient replaces the client used to fetch the document.
func WithHTTPClient(c *http.Client) ServiceOption {
	return func(s *Service) {
		s.client = c
	}
}

func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// Service fetches and caches a Document.
type Service struct {
	url    string
	client *http.Client
	logger *slog.Logger

	mu       sync.Mutex
	doc      *Document
	inflight *fetch
	gen      uint64
}

type fetch struct {
	gen  uint64
	done chan struct{}
	doc  *Document
	err  error
}

func NewService(url string, opts ...ServiceOption) *Service {
	s := &Service{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the cached document or fetches it. Cancelling ctx abandons
// the wait but not the shared fetch.
func (s *Service) Load(ctx context.Context) (*Document, error) {
	s.mu.Lock()
	if s.doc != nil {
		doc := s.doc
		s.mu.Unlock()
		return doc, nil
	}
	f := s.inflight
	if f == nil {
		f = &fetch{gen: s.gen, done: make(chan struct{})}
		s.inflight = f
		go s.run(context.WithoutCancel(ctx), f)
	}
	s.mu.Unlock()

	select {
	case <-f.done:
		return f.doc, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Init fetches the document eagerly.
func (s *Service) Init(ctx context.Context) error {
	_, err := s.Load(ctx)
	return err
}

// Reset drops the cached document; the next Load fetches again. A fetch
// already in flight still answers its callers but is not cached.
func (s *Service) Reset() {
	s.mu.Lock()
	s.gen++
	s.doc = nil
	s.inflight = nil
	s.mu.Unlock()
}

// Endpoint resolves the backend endpoint. It has the shape of a puller
// source's Resolve.
func (s *Service) Endpoint(ctx context.Context) (string, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return "", err
	}
	return doc.Endpoint, nil
}

func (s *Service) run(ctx context.Context, f *fetch) {
	f.doc, f.err = s.get(ctx)

	s.mu.Lock()
	if f.err == nil && f.gen == s.gen {
		s.doc = f.doc
	}
	if s.inflight == f {
		s.inflight = nil
	}
	s.mu.Unlock()
	close(f.done)

	if f.err != nil {
		s.logger.WarnContext(ctx, "config: fetch failed", slog.String("url", s.url), slog.String("error", f.err.Error()))
		return
	}
	s.logger.DebugContext(ctx, "config: loaded", slog.String("url", s.url), slog.String("endpoint", f.doc.Endpoint))
}

func (s *Service) get(ctx context.Context) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("config: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("config: fetch %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("config: fetch %s: unexpected status %d", s.url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", s.url, err)
	}
	return Parse(data)
}
