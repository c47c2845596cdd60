package wskit

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/fgrzl/claims"
)

const (
	ScopeAllTenants = "resourcekit::*"
	ScopePrefix     = "resourcekit::"
	TenantClaim     = "tenant_id"
)

// NewServerMuxerSession derives the tenants a principal may stream from its
// scopes: "resourcekit::*" grants every tenant, "resourcekit::{tenant}"
// grants one.
func NewServerMuxerSession(principal claims.Principal) (MuxerSession, error) {
	allowed := make(map[string]struct{})

	for _, scope := range principal.Scopes() {
		if scope == ScopeAllTenants {
			return &muxerSession{allowAll: true}, nil
		}

		if strings.HasPrefix(scope, ScopePrefix) {
			tenant := strings.TrimPrefix(scope, ScopePrefix)
			if tenant == "" {
				slog.Warn("wskit: ignoring empty tenant scope", slog.String("scope", scope))
				continue
			}
			allowed[tenant] = struct{}{}
		}
	}

	if len(allowed) == 0 {
		return nil, fmt.Errorf("invalid scope: expected %q or %q{tenant}", ScopeAllTenants, ScopePrefix)
	}

	return &muxerSession{allowed: allowed}, nil
}

type MuxerSession interface {
	CanAccessTenant(tenant string) bool
	AllowAllTenants() bool
}

type muxerSession struct {
	allowAll bool
	allowed  map[string]struct{}
}

func (s *muxerSession) CanAccessTenant(tenant string) bool {
	if s.allowAll {
		return true
	}
	_, ok := s.allowed[tenant]
	return ok
}

func (s *muxerSession) AllowAllTenants() bool {
	return s.allowAll
}
