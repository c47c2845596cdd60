package storage

import (
	"context"
	"errors"

	"github.com/fgrzl/enumerators"
	"github.com/fgrzl/resourcekit/pkg/api"
)

var ErrNotFound = errors.New("storage: not found")

// StoreFactory opens the store of one tenant.
type StoreFactory interface {
	NewStore(ctx context.Context, tenant string) (Store, error)
}

// Store persists trait values and collection items of one tenant.
type Store interface {
	// GetTrait returns ErrNotFound when the trait has never been set.
	GetTrait(ctx context.Context, device, trait string) (*api.TraitValue, error)
	PutTrait(ctx context.Context, value *api.TraitValue) error

	// ListCollections enumerates collection names in lexical order.
	ListCollections(ctx context.Context) enumerators.Enumerator[string]
	// ListItems enumerates the items of a collection ordered by id.
	ListItems(ctx context.Context, collection string) enumerators.Enumerator[*api.Item]

	// UpsertItem stores item and returns the version it replaced, if any.
	UpsertItem(ctx context.Context, collection string, item *api.Item) (*api.Item, error)
	// DeleteItem removes an item and returns it, or nil if it did not exist.
	DeleteItem(ctx context.Context, collection, id string) (*api.Item, error)

	Close()
}
