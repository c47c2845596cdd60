package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fgrzl/resourcekit/pkg/auth/jwtkit"
	"github.com/fgrzl/resourcekit/pkg/transport/wskit"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

func tokenCmd(opts *rootOptions) *cobra.Command {
	var (
		tenant  string
		scope   string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an HS256 development token signed with server.secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Server.Secret == "" {
				return errors.New("server.secret is required to sign tokens")
			}
			if scope == "" {
				scope = wskit.ScopePrefix + tenant
			}

			signer := &jwtkit.HMAC256Signer{Secret: []byte(cfg.Server.Secret)}
			token, err := signer.CreateToken(jwt.MapClaims{
				"sub":             subject,
				wskit.TenantClaim: tenant,
				"scopes":          scope,
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "default", "Tenant claim")
	cmd.Flags().StringVar(&scope, "scope", "", "Scopes claim (defaults to the tenant's scope)")
	cmd.Flags().StringVar(&subject, "subject", "dev", "Subject claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")

	return cmd
}
