// Package web composes the HTTP surface of a resourcekit node: the
// authenticated WebSocket endpoint, the published client configuration and
// the Prometheus scrape endpoint.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/fgrzl/claims"
	"github.com/fgrzl/mux"
	"github.com/fgrzl/resourcekit/pkg/config"
	"github.com/fgrzl/resourcekit/pkg/node"
	"github.com/fgrzl/resourcekit/pkg/transport/wskit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ConfigRoute  = "/config.json"
	MetricsRoute = "/metrics"
)

// ServerOptions configures NewHandler.
type ServerOptions struct {
	// Authenticate validates the bearer token of every WebSocket request.
	Authenticate func(token string) (claims.Principal, error)

	Manager node.NodeManager

	// Document is served on /config.json when set.
	Document *config.Document

	// Gatherer is served on /metrics when set.
	Gatherer prometheus.Gatherer
}

// NewHandler builds the node's HTTP handler. Only the WebSocket route
// requires authentication.
func NewHandler(options *ServerOptions) http.Handler {
	router := mux.NewRouter(nil)

	router.UseAuthentication(&mux.AuthenticationOptions{
		Validate: options.Authenticate,
	})

	router.UseAuthorization(&mux.AuthorizationOptions{})

	router.Healthz().AllowAnonymous()

	wskit.ConfigureWebSocketServer(router, options.Manager)

	root := http.NewServeMux()
	if options.Document != nil {
		root.Handle(ConfigRoute, documentHandler(options.Document))
	}
	if options.Gatherer != nil {
		root.Handle(MetricsRoute, promhttp.HandlerFor(options.Gatherer, promhttp.HandlerOpts{}))
	}
	root.Handle("/", router)
	return root
}

func documentHandler(doc *config.Document) http.Handler {
	data, err := json.Marshal(doc)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err != nil {
			slog.ErrorContext(r.Context(), "web: encode config", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(data)
	})
}
