package pebble

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble/v2"
	"github.com/fgrzl/enumerators"
	"github.com/fgrzl/lexkey"
	"github.com/fgrzl/resourcekit/internal/cache"
	"github.com/fgrzl/resourcekit/internal/codec"
	"github.com/fgrzl/resourcekit/pkg/api"
	"github.com/fgrzl/resourcekit/pkg/storage"
)

type PebbleStore struct {
	db        *pebble.DB
	cache     *cache.ExpiringCache
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func NewPebbleStore(path string, cache *cache.ExpiringCache) (*PebbleStore, error) {
	dbPath := filepath.Join(path, "resources")
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{
		db:    db,
		cache: cache,
	}, nil
}

func (s *PebbleStore) Close() {
	s.closeOnce.Do(func() {
		s.cache.Close()
		s.db.Close()
	})
}

func (s *PebbleStore) GetTrait(ctx context.Context, device, trait string) (*api.TraitValue, error) {
	value := &api.TraitValue{}
	if err := s.get(lexkey.Encode(api.TRAITS, device, trait), value); err != nil {
		return nil, err
	}
	return value, nil
}

func (s *PebbleStore) PutTrait(ctx context.Context, value *api.TraitValue) error {
	data, err := codec.Encode(value)
	if err != nil {
		return err
	}
	return s.db.Set(value.GetKey(), data, pebble.Sync)
}

func (s *PebbleStore) ListCollections(ctx context.Context) enumerators.Enumerator[string] {
	lower, upper := lexkey.EncodeFirst(api.INVENTORY, api.COLLECTIONS), lexkey.EncodeLast(api.INVENTORY, api.COLLECTIONS)
	return enumerators.Map(
		NewPebbleEnumerator(ctx, s.db, &pebble.IterOptions{
			LowerBound: lower,
			UpperBound: upper,
		}),
		func(kv KeyValuePair) (string, error) {
			return string(kv.Value), nil
		})
}

func (s *PebbleStore) ListItems(ctx context.Context, collection string) enumerators.Enumerator[*api.Item] {
	lower, upper := lexkey.EncodeFirst(api.ITEMS, collection), lexkey.EncodeLast(api.ITEMS, collection)
	return enumerators.Map(
		NewPebbleEnumerator(ctx, s.db, &pebble.IterOptions{
			LowerBound: lower,
			UpperBound: upper,
		}),
		func(kv KeyValuePair) (*api.Item, error) {
			item := &api.Item{}
			if err := codec.Decode(kv.Value, item); err != nil {
				return nil, err
			}
			return item, nil
		})
}

func (s *PebbleStore) UpsertItem(ctx context.Context, collection string, item *api.Item) (*api.Item, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	key := api.GetItemKey(collection, item.ID)
	old, err := s.lookupItem(key)
	if err != nil {
		return nil, err
	}

	data, err := codec.Encode(item)
	if err != nil {
		return nil, err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(key, data, pebble.NoSync); err != nil {
		return nil, err
	}
	remember, err := s.updateInventory(batch, collection)
	if err != nil {
		return nil, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return nil, err
	}
	remember()
	return old, nil
}

func (s *PebbleStore) DeleteItem(ctx context.Context, collection, id string) (*api.Item, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	key := api.GetItemKey(collection, id)
	old, err := s.lookupItem(key)
	if err != nil || old == nil {
		return nil, err
	}
	if err := s.db.Delete(key, pebble.Sync); err != nil {
		return nil, err
	}
	return old, nil
}

func (s *PebbleStore) lookupItem(key []byte) (*api.Item, error) {
	item := &api.Item{}
	err := s.get(key, item)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *PebbleStore) get(key []byte, v any) error {
	data, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := codec.Decode(data, v); err != nil {
		return fmt.Errorf("pebble: %w", err)
	}
	return nil
}

// updateInventory adds the collection name to batch unless it was written
// recently. The returned func marks it written and must run only after the
// batch commits.
func (s *PebbleStore) updateInventory(batch *pebble.Batch, collection string) (func(), error) {
	key := lexkey.Encode(api.INVENTORY, api.COLLECTIONS, collection)
	cacheKey := key.ToHexString()

	if _, ok := s.cache.Get(cacheKey); ok {
		return func() {}, nil
	}
	if err := batch.Set(key, []byte(collection), pebble.NoSync); err != nil {
		return nil, err
	}
	return func() { s.cache.Set(cacheKey, struct{}{}) }, nil
}
