package wskit

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fgrzl/json/polymorphic"
	"github.com/fgrzl/resourcekit/pkg/api"
	"github.com/fgrzl/resourcekit/pkg/auth"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

type ProviderOption func(*WebSocketBidiStreamProvider)

// WithOrigin sets the Origin header of the handshake.
func WithOrigin(origin string) ProviderOption {
	return func(p *WebSocketBidiStreamProvider) {
		p.origin = origin
	}
}

// WithTenant selects a tenant for principals allowed to access several.
func WithTenant(tenant string) ProviderOption {
	return func(p *WebSocketBidiStreamProvider) {
		p.tenant = tenant
	}
}

// WebSocketBidiStreamProvider manages one WebSocket connection and muxer.
// The connection is dialled on first use and again after it drops.
type WebSocketBidiStreamProvider struct {
	addr   string
	origin string
	tenant string
	tokens auth.TokenSource

	mu      sync.Mutex
	muxer   *WebSocketMuxer
	dialing chan struct{}
	gen     int
}

func NewBidiStreamProvider(addr string, tokens auth.TokenSource, opts ...ProviderOption) *WebSocketBidiStreamProvider {
	p := &WebSocketBidiStreamProvider{
		addr:   addr,
		origin: "http://localhost",
		tokens: tokens,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CallStream opens a muxed stream and sends msg as its first frame. The
// stream is closed with context.Canceled when ctx is done.
func (p *WebSocketBidiStreamProvider) CallStream(ctx context.Context, msg api.Routeable) (api.BidiStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	muxer, err := p.getOrCreateMuxer(ctx)
	if err != nil {
		return nil, err
	}

	stream, err := muxer.Register(uuid.New())
	if err != nil {
		return nil, err
	}
	stream.watch(ctx)

	if err := stream.Encode(polymorphic.NewEnvelope(msg)); err != nil {
		stream.Close(err)
		return nil, err
	}

	return stream, nil
}

// Close drops the current connection, if any.
func (p *WebSocketBidiStreamProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	if p.muxer == nil {
		return nil
	}
	err := p.muxer.Close()
	p.muxer = nil
	return err
}

// getOrCreateMuxer returns the live muxer or dials a new one. Only one dial
// runs at a time; other callers wait for it or for their own ctx.
func (p *WebSocketBidiStreamProvider) getOrCreateMuxer(ctx context.Context) (*WebSocketMuxer, error) {
	for {
		p.mu.Lock()
		if p.muxer != nil {
			select {
			case <-p.muxer.Done():
				slog.DebugContext(ctx, "wskit: connection dropped, redialling", slog.String("addr", p.addr))
				p.muxer = nil
			default:
				muxer := p.muxer
				p.mu.Unlock()
				return muxer, nil
			}
		}
		if wait := p.dialing; wait != nil {
			p.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		dialing := make(chan struct{})
		p.dialing = dialing
		gen := p.gen
		p.mu.Unlock()

		conn, err := p.dial(ctx)

		p.mu.Lock()
		p.dialing = nil
		close(dialing)
		if err == nil && gen != p.gen {
			_ = conn.Close()
			err = api.Errorf(api.Unavailable, "provider closed while dialling")
		}
		var muxer *WebSocketMuxer
		if err == nil {
			muxer = NewClientWebSocketMuxer(context.WithoutCancel(ctx), conn)
			p.muxer = muxer
		}
		p.mu.Unlock()
		return muxer, err
	}
}

// dial establishes the raw WebSocket connection with token-based auth.
func (p *WebSocketBidiStreamProvider) dial(ctx context.Context) (*websocket.Conn, error) {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, api.Errorf(api.Unauthenticated, "token: %v", err)
	}

	addr := p.addr
	if p.tenant != "" {
		u, err := url.Parse(addr)
		if err != nil {
			return nil, api.Errorf(api.InvalidArgument, "endpoint: %v", err)
		}
		q := u.Query()
		q.Set("tenant", p.tenant)
		u.RawQuery = q.Encode()
		addr = u.String()
	}

	cfg, err := websocket.NewConfig(addr, p.origin)
	if err != nil {
		return nil, api.Errorf(api.InvalidArgument, "endpoint: %v", err)
	}

	cfg.Header = http.Header{}
	cfg.Header.Set("Authorization", "Bearer "+token)

	return handshake(ctx, cfg)
}

// handshake dials cfg.Location and runs the WebSocket handshake, aborting
// both when ctx is done.
func handshake(ctx context.Context, cfg *websocket.Config) (*websocket.Conn, error) {
	raw, err := dialTransport(ctx, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, api.Errorf(api.Unavailable, "dial: %v", err)
	}

	stop := context.AfterFunc(ctx, func() { _ = raw.SetDeadline(time.Now()) })
	sniffer := &statusSniffer{Conn: raw}
	conn, err := websocket.NewClient(cfg, sniffer)
	if !stop() {
		_ = raw.Close()
		return nil, ctx.Err()
	}
	if err != nil {
		_ = raw.Close()
		return nil, classifyHandshakeError(sniffer.status(), err)
	}
	return conn, nil
}

func dialTransport(ctx context.Context, cfg *websocket.Config) (net.Conn, error) {
	host := cfg.Location.Host
	switch cfg.Location.Scheme {
	case "wss":
		if cfg.Location.Port() == "" {
			host = net.JoinHostPort(cfg.Location.Hostname(), "443")
		}
		d := &tls.Dialer{Config: cfg.TlsConfig}
		return d.DialContext(ctx, "tcp", host)
	case "ws":
		if cfg.Location.Port() == "" {
			host = net.JoinHostPort(cfg.Location.Hostname(), "80")
		}
		var d net.Dialer
		return d.DialContext(ctx, "tcp", host)
	default:
		return nil, websocket.ErrBadScheme
	}
}

// classifyHandshakeError maps the HTTP status of a refused upgrade: 401 is
// Unauthenticated, 403 is PermissionDenied and anything else, including
// proxy errors while the node restarts, is Unavailable.
func classifyHandshakeError(status int, err error) error {
	if !errors.Is(err, websocket.ErrBadStatus) {
		return api.Errorf(api.Unavailable, "handshake: %v", err)
	}
	switch status {
	case http.StatusUnauthorized:
		return api.Errorf(api.Unauthenticated, "handshake rejected: %d", status)
	case http.StatusForbidden:
		return api.Errorf(api.PermissionDenied, "handshake rejected: %d", status)
	default:
		return api.Errorf(api.Unavailable, "handshake rejected: %d", status)
	}
}

// statusSniffer records the status code of the handshake response as the
// websocket client reads it.
type statusSniffer struct {
	net.Conn
	line []byte
	seen bool
}

func (s *statusSniffer) Read(b []byte) (int, error) {
	n, err := s.Conn.Read(b)
	if !s.seen && n > 0 {
		s.line = append(s.line, b[:n]...)
		if i := bytes.IndexByte(s.line, '\n'); i >= 0 {
			s.line = s.line[:i]
			s.seen = true
		} else if len(s.line) > 256 {
			s.seen = true
		}
	}
	return n, err
}

// status parses "HTTP/1.1 401 Unauthorized"; zero when unknown.
func (s *statusSniffer) status() int {
	fields := strings.Fields(string(s.line))
	if len(fields) < 2 {
		return 0
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return code
}
