package resourcekit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/fgrzl/claims"
	"github.com/fgrzl/claims/jwtkit"
	"github.com/fgrzl/resourcekit"
	"github.com/fgrzl/resourcekit/pkg/auth"
	"github.com/fgrzl/resourcekit/pkg/config"
	"github.com/fgrzl/resourcekit/pkg/node"
	"github.com/fgrzl/resourcekit/pkg/resource"
	"github.com/fgrzl/resourcekit/pkg/storage"
	"github.com/fgrzl/resourcekit/pkg/storage/azure"
	"github.com/fgrzl/resourcekit/pkg/storage/pebble"
	"github.com/fgrzl/resourcekit/pkg/transport/wskit"
	"github.com/fgrzl/resourcekit/pkg/web"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var secret = []byte("top-secret")

type TestHarness struct {
	Server   *httptest.Server
	Endpoint string
	Token    string
	Pool     *resourcekit.ClientPool
	Binding  *resourcekit.Binding
	Client   resourcekit.Client
}

func newTestHarness(t *testing.T, factory storage.StoreFactory) *TestHarness {
	validator := &jwtkit.HMAC256Validator{
		Secret: secret,
	}

	nodeManager := node.NewNodeManager(factory)

	handler := web.NewHandler(&web.ServerOptions{
		Authenticate: validator.Validate,
		Manager:      nodeManager,
	})

	server := httptest.NewServer(handler)

	resp, err := server.Client().Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	token := createToken(t, uuid.NewString(), wskit.ScopeAllTenants)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	endpoint := "ws://" + u.Host + wskit.Route

	pool := resourcekit.NewEndpointPool(auth.StaticToken(token), nil)
	t.Cleanup(func() {
		pool.Close()
		server.Close()
		nodeManager.Close()
	})

	binding := resourcekit.NewBinding(
		func(ctx context.Context) (string, error) { return endpoint, nil },
		pool,
		resource.WithBackoff(resource.Backoff{Floor: 20 * time.Millisecond, Ceiling: 100 * time.Millisecond}),
	)

	return &TestHarness{
		Server:   server,
		Endpoint: endpoint,
		Token:    token,
		Pool:     pool,
		Binding:  binding,
		Client:   pool.GetClient(endpoint),
	}
}

func createToken(t *testing.T, tenant, scope string) string {
	t.Helper()
	signer := jwtkit.HMAC256Signer{
		Secret: secret,
	}
	ttl := time.Minute
	principal := claims.NewPrincipalFromList(claims.NewClaimsList(wskit.TenantClaim, tenant).Add("scopes", scope), &ttl)
	token, err := signer.CreateToken(principal, ttl)
	require.NoError(t, err)
	return token
}

func azureTestHarness(t *testing.T) *TestHarness {
	// Default Azurite configuration for local testing
	accountName := "devstoreaccount1"
	accountKey := "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
	endpoint := "http://127.0.0.1:10002/devstoreaccount1"

	options, err := azure.NewStoreOptions("t"+uuid.NewString(), endpoint, accountName, accountKey)
	require.NoError(t, err)
	options.AllowInsecureHTTP = true

	factory, err := azure.NewStoreFactory(options)
	require.NoError(t, err)

	return newTestHarness(t, factory)
}

func pebbleTestHarness(t *testing.T) *TestHarness {
	options := &pebble.PebbleStoreOptions{
		Path: t.TempDir(),
	}
	factory, err := pebble.NewStoreFactory(options)
	require.NoError(t, err)

	return newTestHarness(t, factory)
}

// configurations runs against Azurite only when RESOURCEKIT_AZURITE is set.
func configurations(t *testing.T) map[string]*TestHarness {
	harnesses := map[string]*TestHarness{
		"pebble": pebbleTestHarness(t),
	}
	if os.Getenv("RESOURCEKIT_AZURITE") != "" {
		harnesses["azure"] = azureTestHarness(t)
	}
	return harnesses
}

// publishedConfig serves a config document pointing at endpoint.
func publishedConfig(t *testing.T, endpoint string) *config.Service {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			// test node
			"endpoint": "` + endpoint + `"
		}`))
	}))
	t.Cleanup(server.Close)
	return config.NewService(server.URL)
}
