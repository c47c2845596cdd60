package wskit

import (
	"log/slog"

	"github.com/fgrzl/mux"
	"github.com/fgrzl/resourcekit/pkg/node"
	"golang.org/x/net/websocket"
)

// Route is the path the WebSocket endpoint is served on.
const Route = "/ws"

// ConfigureWebSocketServer registers the WebSocket endpoint on router. The
// tenant is the principal's tenant claim, or the "tenant" query parameter
// when the principal's scopes allow it.
func ConfigureWebSocketServer(router *mux.Router, manager node.NodeManager) {
	server := &webSocketServer{
		manager: manager,
	}
	router.GET(Route, server.connect)
}

type webSocketServer struct {
	manager node.NodeManager
}

func (s *webSocketServer) connect(c *mux.RouteContext) {
	session, err := NewServerMuxerSession(c.User)
	if err != nil {
		c.Forbidden(err.Error())
		return
	}

	tenant := c.Request.URL.Query().Get("tenant")
	if tenant == "" {
		claim, ok := c.User.Claims()[TenantClaim]
		if !ok {
			c.Forbidden("missing tenant")
			return
		}
		tenant = claim.Value()
	}
	if !session.CanAccessTenant(tenant) {
		c.Forbidden("tenant not in scope")
		return
	}

	n, err := s.manager.GetOrCreate(c, tenant)
	if err != nil {
		c.ServerError("Could not connect", err.Error())
		return
	}

	slog.DebugContext(c, "wskit: client connected", slog.String("tenant", tenant))
	websocket.Handler(func(conn *websocket.Conn) {
		ServeWebSocketMuxer(node.WithTenant(c, tenant), n, conn)
	}).ServeHTTP(c.Response, c.Request)
}
