package wskit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fgrzl/resourcekit/pkg/api"
	"github.com/fgrzl/resourcekit/pkg/node"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

// MuxerMsg represents a framed message sent over the multiplexed WebSocket.
// Each message is scoped to a specific logical channel by ChannelID. A frame
// with EOS set ends the channel; Status carries the failure, if any.
type MuxerMsg struct {
	ChannelID uuid.UUID   `json:"channel_id"`
	Payload   []byte      `json:"payload,omitempty"`
	EOS       bool        `json:"eos,omitempty"`
	Status    *api.Status `json:"status,omitempty"`
}

// Handler serves the streams a peer opens. node.Node implements it.
type Handler interface {
	Handle(context.Context, api.BidiStream)
}

// WebSocketMuxer multiplexes multiple logical bidirectional streams over a single WebSocket connection.
// Each logical stream is identified by a ChannelID.
type WebSocketMuxer struct {
	ctx        context.Context
	name       string
	conn       *websocket.Conn
	handler    Handler
	channels   map[uuid.UUID]*MuxerBidiStream
	channelsMu sync.RWMutex
	writeMu    sync.Mutex
	done       chan struct{}
	closeOnce  sync.Once
}

// NewClientWebSocketMuxer spawns the read loop and returns the muxer.
func NewClientWebSocketMuxer(ctx context.Context, conn *websocket.Conn) *WebSocketMuxer {
	m := newMuxer(ctx, "client", conn, nil)
	go m.readLoop()
	return m
}

// ServeWebSocketMuxer runs the server read loop until the connection drops.
// Every channel the client opens is served by handler.
func ServeWebSocketMuxer(ctx context.Context, handler Handler, conn *websocket.Conn) {
	m := newMuxer(ctx, "server", conn, handler)
	m.readLoop()
}

func newMuxer(ctx context.Context, name string, conn *websocket.Conn, handler Handler) *WebSocketMuxer {
	return &WebSocketMuxer{
		ctx:      ctx,
		name:     name,
		conn:     conn,
		handler:  handler,
		channels: make(map[uuid.UUID]*MuxerBidiStream),
		done:     make(chan struct{}),
	}
}

// Done is closed when the connection has dropped.
func (m *WebSocketMuxer) Done() <-chan struct{} { return m.done }

// Close drops the connection; every open stream fails with Unavailable.
func (m *WebSocketMuxer) Close() error {
	return m.conn.Close()
}

// Register creates and tracks a new stream for the given ChannelID.
func (m *WebSocketMuxer) Register(channelID uuid.UUID) (*MuxerBidiStream, error) {
	select {
	case <-m.done:
		return nil, api.Errorf(api.Unavailable, "connection closed")
	default:
	}
	return m.register(channelID), nil
}

func (m *WebSocketMuxer) register(channelID uuid.UUID) *MuxerBidiStream {
	send := func(msg *MuxerMsg) error {
		m.writeMu.Lock()
		defer m.writeMu.Unlock()
		if err := websocket.JSON.Send(m.conn, msg); err != nil {
			return api.Errorf(api.Unavailable, "send: %v", err)
		}
		return nil
	}

	cleanup := func() {
		m.channelsMu.Lock()
		delete(m.channels, channelID)
		m.channelsMu.Unlock()
		slog.Debug("muxer: stream unregistered", slog.String("muxer", m.name), slog.String("channel_id", channelID.String()))
	}

	bidi := newMuxerBidiStream(channelID, send, cleanup)

	m.channelsMu.Lock()
	m.channels[channelID] = bidi
	m.channelsMu.Unlock()

	select {
	case <-m.done:
		bidi.fail(api.Errorf(api.Unavailable, "connection lost"))
	default:
	}

	slog.Debug("muxer: stream registered", slog.String("muxer", m.name), slog.String("channel_id", channelID.String()))
	return bidi
}

// readLoop continuously receives messages from the WebSocket,
// routes them to the appropriate stream, and on the server side
// starts a handler for every new channel.
func (m *WebSocketMuxer) readLoop() {
	defer m.shutdown()

	for {
		var msg MuxerMsg
		if err := websocket.JSON.Receive(m.conn, &msg); err != nil {
			slog.Debug("muxer: websocket receive ended", slog.String("muxer", m.name), slog.String("error", err.Error()))
			return
		}

		m.channelsMu.RLock()
		bidi, exists := m.channels[msg.ChannelID]
		m.channelsMu.RUnlock()

		ctx := node.WithChannelID(m.ctx, msg.ChannelID)

		if !exists {
			if m.handler == nil || msg.EOS {
				slog.DebugContext(ctx, "muxer: dropped message for unknown stream", slog.String("muxer", m.name), slog.String("channel_id", msg.ChannelID.String()))
				continue
			}
			bidi = m.register(msg.ChannelID)
			go m.serve(ctx, bidi)
		}

		if !bidi.deliver(&msg) {
			slog.DebugContext(ctx, "muxer: dropped message for closed stream", slog.String("muxer", m.name), slog.String("channel_id", msg.ChannelID.String()))
		}
	}
}

func (m *WebSocketMuxer) serve(ctx context.Context, bidi *MuxerBidiStream) {
	defer bidi.Close(nil)
	m.handler.Handle(ctx, bidi)
}

// shutdown fails every open stream once the connection is gone.
func (m *WebSocketMuxer) shutdown() {
	m.closeOnce.Do(func() {
		close(m.done)
		_ = m.conn.Close()

		m.channelsMu.RLock()
		open := make([]*MuxerBidiStream, 0, len(m.channels))
		for _, bidi := range m.channels {
			open = append(open, bidi)
		}
		m.channelsMu.RUnlock()

		for _, bidi := range open {
			bidi.fail(api.Errorf(api.Unavailable, "connection lost"))
		}
		slog.Debug("muxer: closed", slog.String("muxer", m.name), slog.Int("streams", len(open)))
	})
}
