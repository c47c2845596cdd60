package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fgrzl/claims"
	"github.com/fgrzl/resourcekit/pkg/auth/jwtkit"
	"github.com/fgrzl/resourcekit/pkg/config"
	"github.com/fgrzl/resourcekit/pkg/node"
	"github.com/fgrzl/resourcekit/pkg/storage"
	"github.com/fgrzl/resourcekit/pkg/storage/azure"
	"github.com/fgrzl/resourcekit/pkg/storage/pebble"
	"github.com/fgrzl/resourcekit/pkg/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a backend node",
		Long: `Run a backend node serving /ws, /config.json, /metrics and /healthz.
Tokens are validated with server.secret (HS256) or server.public_key (RS256).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if err := cfg.ValidateServer(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}

func serve(ctx context.Context, cfg *config.File) error {
	factory, err := newStoreFactory(cfg.Server.Store)
	if err != nil {
		return err
	}

	authenticate, err := newAuthenticator(cfg.Server)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	manager := node.NewNodeManager(factory,
		node.WithMetrics(node.NewMetrics(registry)),
		node.WithLogger(slog.Default()),
	)
	defer manager.Close()

	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: web.NewHandler(&web.ServerOptions{
			Authenticate: authenticate,
			Manager:      manager,
			Document:     cfg.Document(),
			Gatherer:     registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		slog.Info("serve: listening",
			slog.String("addr", cfg.Server.Addr),
			slog.String("store", cfg.Server.Store.Kind))
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("serve: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newStoreFactory(cfg config.StoreConfig) (storage.StoreFactory, error) {
	switch cfg.Kind {
	case "pebble":
		return pebble.NewStoreFactory(&pebble.PebbleStoreOptions{
			Path:     cfg.Pebble.Path,
			CacheTTL: cfg.Pebble.CacheTTL,
		})
	case "azure":
		options, err := azure.NewStoreOptions(cfg.Azure.Prefix, cfg.Azure.Endpoint, cfg.Azure.Account, cfg.Azure.Key)
		if err != nil {
			return nil, err
		}
		options.AllowInsecureHTTP = strings.HasPrefix(cfg.Azure.Endpoint, "http://")
		return azure.NewStoreFactory(options)
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}

func newAuthenticator(cfg config.ServerConfig) (func(string) (claims.Principal, error), error) {
	if cfg.PublicKey != "" {
		key, err := jwtkit.LoadPublicKey(cfg.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("load public key: %w", err)
		}
		return jwtkit.Authenticate(&jwtkit.RSAValidator{PublicKey: key}), nil
	}
	return jwtkit.Authenticate(&jwtkit.HMAC256Validator{Secret: []byte(cfg.Secret)}), nil
}
