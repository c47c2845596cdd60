package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fgrzl/resourcekit"
	"github.com/fgrzl/resourcekit/pkg/auth"
	"github.com/fgrzl/resourcekit/pkg/config"
	"github.com/fgrzl/resourcekit/pkg/resource"
	"github.com/fgrzl/resourcekit/pkg/transport/wskit"
	"github.com/spf13/cobra"
)

type clientOptions struct {
	token  string
	tenant string
}

func (o *clientOptions) bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.token, "token", "", "Bearer token (overrides client.token)")
	cmd.PersistentFlags().StringVar(&o.tenant, "tenant", "", "Tenant to connect to when the token allows several")
}

// connect builds a Binding from the client section of the configuration.
// The endpoint comes from the published document when client.config_url is
// set.
func (o *clientOptions) connect(cfg *config.File) (*resourcekit.Binding, func(), error) {
	token := cfg.Client.Token
	if o.token != "" {
		token = o.token
	}
	if token == "" {
		return nil, nil, errors.New("a token is required (client.token or --token)")
	}

	endpoint := func(context.Context) (string, error) { return cfg.Client.Endpoint, nil }
	if cfg.Client.ConfigURL != "" {
		endpoint = config.NewService(cfg.Client.ConfigURL).Endpoint
	}

	var providerOpts []wskit.ProviderOption
	if o.tenant != "" {
		providerOpts = append(providerOpts, wskit.WithTenant(o.tenant))
	}

	tokens := auth.NewRefreshingTokenSource(auth.StaticToken(token))
	pool := resourcekit.NewEndpointPool(tokens, func(err error) {
		tokens.Invalidate()
		slog.Error("credentials rejected", slog.String("error", err.Error()))
	}, providerOpts...)

	binding := resourcekit.NewBinding(endpoint, pool, resource.WithLogger(slog.Default()))
	return binding, pool.Close, nil
}
