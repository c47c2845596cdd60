package resourcekit

import (
	"context"
	"encoding/json"

	"github.com/fgrzl/enumerators"
	"github.com/fgrzl/resourcekit/pkg/api"
	"github.com/fgrzl/resourcekit/pkg/wstream"
)

type TraitValue = api.TraitValue
type Item = api.Item
type CollectionChange = api.CollectionChange

type Client interface {

	// Stream the value of a trait: the current value first, then every change.
	PullTrait(ctx context.Context, device, trait string) (api.Stream[*TraitValue], error)

	// Stream a collection: every item as an upsert, then every change.
	PullCollection(ctx context.Context, collection string) (api.Stream[*CollectionChange], error)

	// Get the current value of a trait.
	GetTrait(ctx context.Context, device, trait string) (*TraitValue, error)

	// Replace the value of a trait.
	UpdateTrait(ctx context.Context, device, trait string, payload json.RawMessage) (*TraitValue, error)

	// Get all the collection names.
	GetCollections(ctx context.Context) enumerators.Enumerator[string]

	// List the current items of a collection.
	ListCollection(ctx context.Context, collection string) enumerators.Enumerator[*Item]

	// Insert or replace an item.
	UpsertItem(ctx context.Context, collection string, item *Item) (*CollectionChange, error)

	// Remove an item. Fails with NotFound when it does not exist.
	DeleteItem(ctx context.Context, collection, id string) (*CollectionChange, error)
}

func NewClient(provider api.BidiStreamProvider) Client {
	return wstream.NewClient(provider)
}
