// Package wstream implements the resourcekit client over any
// api.BidiStreamProvider, usually the WebSocket muxer from transport/wskit.
package wstream

import (
	"context"
	"encoding/json"
	"io"

	"github.com/fgrzl/enumerators"
	"github.com/fgrzl/resourcekit/pkg/api"
)

func NewClient(provider api.BidiStreamProvider) *WSResourceClient {
	return &WSResourceClient{
		provider: provider,
	}
}

type WSResourceClient struct {
	provider api.BidiStreamProvider
}

func (d *WSResourceClient) PullTrait(ctx context.Context, device, trait string) (api.Stream[*api.TraitValue], error) {
	stream, err := d.provider.CallStream(ctx, &api.PullTrait{Device: device, Trait: trait})
	if err != nil {
		return nil, err
	}
	return api.NewStream[*api.TraitValue](stream), nil
}

func (d *WSResourceClient) PullCollection(ctx context.Context, collection string) (api.Stream[*api.CollectionChange], error) {
	stream, err := d.provider.CallStream(ctx, &api.PullCollection{Collection: collection})
	if err != nil {
		return nil, err
	}
	return api.NewStream[*api.CollectionChange](stream), nil
}

func (d *WSResourceClient) GetTrait(ctx context.Context, device, trait string) (*api.TraitValue, error) {
	return unary[api.TraitValue](ctx, d.provider, &api.GetTrait{Device: device, Trait: trait})
}

func (d *WSResourceClient) UpdateTrait(ctx context.Context, device, trait string, payload json.RawMessage) (*api.TraitValue, error) {
	return unary[api.TraitValue](ctx, d.provider, &api.UpdateTrait{Device: device, Trait: trait, Payload: payload})
}

func (d *WSResourceClient) GetCollections(ctx context.Context) enumerators.Enumerator[string] {
	stream, err := d.provider.CallStream(ctx, &api.GetCollections{})
	if err != nil {
		return enumerators.Error[string](err)
	}
	return api.NewStreamEnumerator[string](stream)
}

func (d *WSResourceClient) ListCollection(ctx context.Context, collection string) enumerators.Enumerator[*api.Item] {
	stream, err := d.provider.CallStream(ctx, &api.ListCollection{Collection: collection})
	if err != nil {
		return enumerators.Error[*api.Item](err)
	}
	return api.NewStreamEnumerator[*api.Item](stream)
}

func (d *WSResourceClient) UpsertItem(ctx context.Context, collection string, item *api.Item) (*api.CollectionChange, error) {
	return unary[api.CollectionChange](ctx, d.provider, &api.UpsertItem{Collection: collection, Item: item})
}

func (d *WSResourceClient) DeleteItem(ctx context.Context, collection, id string) (*api.CollectionChange, error) {
	return unary[api.CollectionChange](ctx, d.provider, &api.DeleteItem{Collection: collection, ID: id})
}

// unary sends msg and waits for exactly one reply.
func unary[R any](ctx context.Context, provider api.BidiStreamProvider, msg api.Routeable) (*R, error) {
	stream, err := provider.CallStream(ctx, msg)
	if err != nil {
		return nil, err
	}
	defer stream.Close(nil)

	reply := new(R)
	if err := stream.Decode(reply); err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return reply, nil
}
