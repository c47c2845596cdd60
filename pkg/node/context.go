package node

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type channelKey struct{}

type tenantKey struct{}

// WithChannelID attaches the muxed channel a request arrived on.
func WithChannelID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, channelKey{}, id)
}

func ChannelIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(channelKey{}).(uuid.UUID)
	return id, ok
}

// WithTenant attaches the tenant a connection was authorized for.
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}

func TenantFromContext(ctx context.Context) (string, bool) {
	tenant, ok := ctx.Value(tenantKey{}).(string)
	return tenant, ok
}

// requestAttrs returns the log attributes known for the request in ctx.
func requestAttrs(ctx context.Context) []any {
	attrs := make([]any, 0, 2)
	if tenant, ok := TenantFromContext(ctx); ok {
		attrs = append(attrs, slog.String("tenant", tenant))
	}
	if id, ok := ChannelIDFromContext(ctx); ok {
		attrs = append(attrs, slog.String("channel", id.String()))
	}
	return attrs
}
