package resourcekit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fgrzl/resourcekit/pkg/api"
	"github.com/fgrzl/resourcekit/pkg/auth"
	"github.com/fgrzl/resourcekit/pkg/resource"
	"github.com/fgrzl/resourcekit/pkg/transport/wskit"
)

// Binding ties watches to a backend: Endpoint resolves the node to talk to
// on every (re)connect and the pool supplies the client for it.
type Binding struct {
	endpoint func(ctx context.Context) (string, error)
	clients  *ClientPool
	options  []resource.PullOption
}

// NewBinding returns a Binding. endpoint is usually (*config.Service).Endpoint;
// opts are applied to every watch started through the binding.
func NewBinding(endpoint func(ctx context.Context) (string, error), clients *ClientPool, opts ...resource.PullOption) *Binding {
	return &Binding{
		endpoint: endpoint,
		clients:  clients,
		options:  opts,
	}
}

// Client resolves the endpoint and returns its client.
func (b *Binding) Client(ctx context.Context) (Client, error) {
	endpoint, err := b.endpoint(ctx)
	if err != nil {
		return nil, err
	}
	return b.clients.GetClient(endpoint), nil
}

// NewEndpointPool returns a pool keyed by endpoint whose connections carry
// tokens from tokens. onAuthFailure, if set, is called when the node rejects
// the credentials.
func NewEndpointPool(tokens auth.TokenSource, onAuthFailure func(error), opts ...wskit.ProviderOption) *ClientPool {
	return NewClientPool(func(endpoint string) api.BidiStreamProvider {
		provider := wskit.NewBidiStreamProvider(endpoint, tokens, opts...)
		return auth.NewInterceptor(provider, onAuthFailure)
	})
}

// WatchTrait streams a trait into a Value whose payload decodes as T. The
// watch stops when scope is disposed or ctx is done.
func WatchTrait[T any](ctx context.Context, scope *resource.Scope, b *Binding, device, trait string) *resource.Value[T] {
	value := resource.NewValue[T]()
	src := resource.Source[T]{
		Resolve: b.endpoint,
		Open: func(ctx context.Context, endpoint string) (resource.Stream[T], error) {
			stream, err := b.clients.GetClient(endpoint).PullTrait(ctx, device, trait)
			if err != nil {
				return nil, err
			}
			return resource.MapStream[*TraitValue, T](stream, decodeTrait[T]), nil
		},
	}

	name := fmt.Sprintf("trait:%s/%s", device, trait)
	scope.Add(resource.Pull(ctx, name, value, src, b.options...))
	return value
}

// WatchCollection streams a collection into a Collection keyed by id. Item
// payloads decode as T.
func WatchCollection[K comparable, T any](ctx context.Context, scope *resource.Scope, b *Binding, collection string, id func(T) K) *resource.Collection[K, T] {
	return watchCollection(ctx, scope, b, collection, id, decodeItem[T])
}

// WatchItems streams a collection as raw items keyed by item id.
func WatchItems(ctx context.Context, scope *resource.Scope, b *Binding, collection string) *resource.Collection[string, Item] {
	return watchCollection(ctx, scope, b, collection, func(i Item) string { return i.ID }, copyItem)
}

func watchCollection[K comparable, T any](ctx context.Context, scope *resource.Scope, b *Binding, collection string, id func(T) K, decode func(*Item) (*T, error)) *resource.Collection[K, T] {
	items := resource.NewCollection(id)
	src := resource.Source[resource.Change[T]]{
		Resolve: b.endpoint,
		Open: func(ctx context.Context, endpoint string) (resource.Stream[resource.Change[T]], error) {
			stream, err := b.clients.GetClient(endpoint).PullCollection(ctx, collection)
			if err != nil {
				return nil, err
			}
			return resource.MapStream[*CollectionChange, resource.Change[T]](stream, func(c *CollectionChange) (resource.Change[T], error) {
				return decodeChange(c, decode)
			}), nil
		},
	}

	name := "collection:" + collection
	scope.Add(resource.Pull(ctx, name, items, src, b.options...))
	return items
}

// UpdateTrait encodes v and writes it to the trait, recording the call on
// tracker.
func UpdateTrait[T any](ctx context.Context, tracker *resource.Tracker[*TraitValue], b *Binding, device, trait string, v T) (*TraitValue, error) {
	return tracker.Run(ctx, func(ctx context.Context) (*TraitValue, error) {
		payload, err := json.Marshal(v)
		if err != nil {
			return nil, api.Errorf(api.InvalidArgument, "encode %s/%s: %v", device, trait, err)
		}
		client, err := b.Client(ctx)
		if err != nil {
			return nil, err
		}
		return client.UpdateTrait(ctx, device, trait, payload)
	})
}

func decodeTrait[T any](v *TraitValue) (T, error) {
	var out T
	if err := json.Unmarshal(v.Payload, &out); err != nil {
		return out, fmt.Errorf("decode %s/%s: %w", v.Device, v.Trait, err)
	}
	return out, nil
}

func decodeChange[T any](c *CollectionChange, decode func(*Item) (*T, error)) (resource.Change[T], error) {
	change := resource.Change[T]{}
	if c.ChangeTime != 0 {
		change.ChangeTime = time.UnixMilli(c.ChangeTime)
	}
	var err error
	if change.OldValue, err = decode(c.OldValue); err != nil {
		return change, err
	}
	if change.NewValue, err = decode(c.NewValue); err != nil {
		return change, err
	}
	return change, nil
}

func decodeItem[T any](item *Item) (*T, error) {
	if item == nil {
		return nil, nil
	}
	out := new(T)
	if err := json.Unmarshal(item.Payload, out); err != nil {
		return nil, fmt.Errorf("decode item %s: %w", item.ID, err)
	}
	return out, nil
}

func copyItem(item *Item) (*Item, error) {
	if item == nil {
		return nil, nil
	}
	out := *item
	return &out, nil
}
