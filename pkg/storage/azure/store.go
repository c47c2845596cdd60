package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/fgrzl/enumerators"
	"github.com/fgrzl/lexkey"
	"github.com/fgrzl/resourcekit/internal/cache"
	"github.com/fgrzl/resourcekit/internal/codec"
	"github.com/fgrzl/resourcekit/pkg/api"
	"github.com/fgrzl/resourcekit/pkg/storage"
)

const (
	ErrTableCreation       = "failed to create table"
	ErrUnmarshalEntity     = "failed to unmarshal entity"
	ErrDecodeValue         = "failed to decode value"
	ErrEntityWrite         = "failed to write entity"
	ErrCollectionInventory = "failed to update collection inventory"
)

// entity is the table row shape. Keys are hex encoded lexkeys so row order
// matches key order.
type entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
	Value        []byte `json:"Value,omitempty"`
}

type AzureStore struct {
	client    *aztables.Client
	cache     *cache.ExpiringCache
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func NewAzureStore(ctx context.Context, client *aztables.Client, cache *cache.ExpiringCache) (*AzureStore, error) {
	store := &AzureStore{
		client: client,
		cache:  cache,
	}

	if err := store.createTableIfNotExists(ctx); err != nil {
		return nil, fmt.Errorf("create table if not exists failed: %w", err)
	}
	return store, nil
}

func (s *AzureStore) Close() {
	s.closeOnce.Do(func() {
		s.cache.Close()
	})
}

func (s *AzureStore) GetTrait(ctx context.Context, device, trait string) (*api.TraitValue, error) {
	pk, rk := traitKeys(device, trait)
	value := &api.TraitValue{}
	if err := s.get(ctx, pk, rk, value); err != nil {
		return nil, err
	}
	return value, nil
}

func (s *AzureStore) PutTrait(ctx context.Context, value *api.TraitValue) error {
	pk, rk := traitKeys(value.Device, value.Trait)
	return s.put(ctx, pk, rk, value)
}

func (s *AzureStore) ListCollections(ctx context.Context) enumerators.Enumerator[string] {
	pk := lexkey.Encode(api.INVENTORY, api.COLLECTIONS).ToHexString()
	return enumerators.Map(s.partition(ctx, pk), func(e *entity) (string, error) {
		return string(e.Value), nil
	})
}

func (s *AzureStore) ListItems(ctx context.Context, collection string) enumerators.Enumerator[*api.Item] {
	pk := itemPartition(collection)
	return enumerators.Map(s.partition(ctx, pk), func(e *entity) (*api.Item, error) {
		return decodeItem(e.Value)
	})
}

func (s *AzureStore) UpsertItem(ctx context.Context, collection string, item *api.Item) (*api.Item, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	pk, rk := itemPartition(collection), lexkey.Encode(item.ID).ToHexString()
	old, err := s.lookupItem(ctx, pk, rk)
	if err != nil {
		return nil, err
	}
	if err := s.put(ctx, pk, rk, item); err != nil {
		return nil, err
	}
	if err := s.updateInventory(ctx, collection); err != nil {
		return nil, err
	}
	return old, nil
}

func (s *AzureStore) DeleteItem(ctx context.Context, collection, id string) (*api.Item, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	pk, rk := itemPartition(collection), lexkey.Encode(id).ToHexString()
	old, err := s.lookupItem(ctx, pk, rk)
	if err != nil || old == nil {
		return nil, err
	}
	if _, err := s.client.DeleteEntity(ctx, pk, rk, nil); err != nil && !isNotFoundError(err) {
		return nil, err
	}
	return old, nil
}

func (s *AzureStore) partition(ctx context.Context, pk string) enumerators.Enumerator[*entity] {
	query := fmt.Sprintf("PartitionKey eq '%s'", pk)
	return NewAzureTableEnumerator(ctx, s.client.NewListEntitiesPager(&aztables.ListEntitiesOptions{
		Filter: &query,
		Format: ptr(aztables.MetadataFormatNone),
	}))
}

func (s *AzureStore) lookupItem(ctx context.Context, pk, rk string) (*api.Item, error) {
	item := &api.Item{}
	err := s.get(ctx, pk, rk, item)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *AzureStore) get(ctx context.Context, pk, rk string, v any) error {
	resp, err := s.client.GetEntity(ctx, pk, rk, nil)
	if isNotFoundError(err) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}

	var e entity
	if err := json.Unmarshal(resp.Value, &e); err != nil {
		return fmt.Errorf("%s: %w", ErrUnmarshalEntity, err)
	}
	if err := codec.Decode(e.Value, v); err != nil {
		return fmt.Errorf("%s: %w", ErrDecodeValue, err)
	}
	return nil
}

func (s *AzureStore) put(ctx context.Context, pk, rk string, v any) error {
	value, err := codec.Encode(v)
	if err != nil {
		return err
	}
	if _, err := s.client.UpsertEntity(ctx, mustMarshal(entity{
		PartitionKey: pk,
		RowKey:       rk,
		Value:        value,
	}), &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace}); err != nil {
		return fmt.Errorf("%s: %w", ErrEntityWrite, err)
	}
	return nil
}

func (s *AzureStore) updateInventory(ctx context.Context, collection string) error {
	pk := lexkey.Encode(api.INVENTORY, api.COLLECTIONS).ToHexString()
	rk := lexkey.Encode(collection).ToHexString()

	cacheKey := pk + rk
	if _, ok := s.cache.Get(cacheKey); ok {
		return nil
	}

	if _, err := s.client.UpsertEntity(ctx, mustMarshal(entity{
		PartitionKey: pk,
		RowKey:       rk,
		Value:        []byte(collection),
	}), &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace}); err != nil {
		return fmt.Errorf("%s: %w", ErrCollectionInventory, err)
	}

	s.cache.Set(cacheKey, struct{}{})
	return nil
}

func (s *AzureStore) createTableIfNotExists(ctx context.Context) error {
	_, err := s.client.CreateTable(ctx, &aztables.CreateTableOptions{})
	if err == nil {
		return nil
	}

	var responseErr *azcore.ResponseError
	if errors.As(err, &responseErr) && responseErr.ErrorCode == string(aztables.TableAlreadyExists) {
		return nil
	}

	return fmt.Errorf("%s: %w", ErrTableCreation, err)
}

func traitKeys(device, trait string) (string, string) {
	return lexkey.Encode(api.TRAITS, device).ToHexString(), lexkey.Encode(trait).ToHexString()
}

func itemPartition(collection string) string {
	return lexkey.Encode(api.ITEMS, collection).ToHexString()
}

func decodeItem(value []byte) (*api.Item, error) {
	item := &api.Item{}
	if err := codec.Decode(value, item); err != nil {
		return nil, fmt.Errorf("%s: %w", ErrDecodeValue, err)
	}
	return item, nil
}

func isNotFoundError(err error) bool {
	var responseErr *azcore.ResponseError
	return errors.As(err, &responseErr) && responseErr.StatusCode == http.StatusNotFound
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal: %v", err))
	}
	return data
}

func ptr[T any](v T) *T {
	return &v
}
