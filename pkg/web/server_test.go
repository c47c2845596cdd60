package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fgrzl/resourcekit/pkg/auth/jwtkit"
	"github.com/fgrzl/resourcekit/pkg/config"
	"github.com/fgrzl/resourcekit/pkg/node"
	"github.com/fgrzl/resourcekit/pkg/storage/pebble"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	factory, err := pebble.NewStoreFactory(&pebble.PebbleStoreOptions{Path: t.TempDir()})
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	manager := node.NewNodeManager(factory, node.WithMetrics(node.NewMetrics(registry)))

	handler := NewHandler(&ServerOptions{
		Authenticate: jwtkit.Authenticate(&jwtkit.HMAC256Validator{Secret: []byte("top-secret")}),
		Manager:      manager,
		Document:     &config.Document{Endpoint: "ws://node.test/ws", Features: map[string]bool{"alerts": true}},
		Gatherer:     registry,
	})

	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		server.Close()
		manager.Close()
	})
	return server
}

func TestHandler(t *testing.T) {
	t.Run("should serve health anonymously", func(t *testing.T) {
		// Arrange
		server := newTestServer(t)

		// Act
		resp, err := server.Client().Get(server.URL + "/healthz")

		// Assert
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("should publish the client document", func(t *testing.T) {
		// Arrange
		server := newTestServer(t)

		// Act
		resp, err := server.Client().Get(server.URL + ConfigRoute)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		doc, parseErr := config.Parse(body)

		// Assert
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		require.NoError(t, parseErr)
		assert.Equal(t, "ws://node.test/ws", doc.Endpoint)
		assert.True(t, doc.Enabled("alerts"))
	})

	t.Run("should expose metrics", func(t *testing.T) {
		// Arrange
		server := newTestServer(t)

		// Act
		resp, err := server.Client().Get(server.URL + MetricsRoute)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		// Assert
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, strings.Contains(string(body), "resourcekit_node_open_pulls"))
	})

}

func TestDocumentHandler(t *testing.T) {
	t.Run("should only answer GET", func(t *testing.T) {
		// Arrange
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, ConfigRoute, nil)

		// Act
		documentHandler(&config.Document{Endpoint: "ws://x/ws"}).ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("should encode the document", func(t *testing.T) {
		// Arrange
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, ConfigRoute, nil)

		// Act
		documentHandler(&config.Document{Endpoint: "ws://x/ws", Tenant: "acme"}).ServeHTTP(rec, req)
		var doc config.Document
		err := json.Unmarshal(rec.Body.Bytes(), &doc)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "acme", doc.Tenant)
	})
}
