package pebble

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fgrzl/resourcekit/internal/cache"
	"github.com/fgrzl/resourcekit/pkg/storage"
)

var (
	CacheTTL             time.Duration = time.Second * 97
	CacheCleanupInterval time.Duration = time.Second * 59
)

// PebbleStoreOptions configures the on-disk stores. Each tenant gets its own
// database under Path.
type PebbleStoreOptions struct {
	Path string
	// CacheTTL bounds how long known collection names are remembered
	// before the inventory key is rewritten. Zero uses the package default.
	CacheTTL time.Duration
}

func (o *PebbleStoreOptions) Validate() error {
	if o == nil {
		return errors.New("pebble: options are required")
	}
	if o.Path == "" {
		return errors.New("pebble: path is required")
	}
	return nil
}

// StoreFactory creates pebble-backed stores.
type StoreFactory struct {
	options *PebbleStoreOptions
}

// NewStoreFactory validates options.
func NewStoreFactory(options *PebbleStoreOptions) (*StoreFactory, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	return &StoreFactory{options: options}, nil
}

func (f *StoreFactory) NewStore(ctx context.Context, tenant string) (storage.Store, error) {
	if tenant == "" || !filepath.IsLocal(tenant) {
		return nil, fmt.Errorf("pebble: invalid tenant %q", tenant)
	}
	ttl := f.options.CacheTTL
	if ttl <= 0 {
		ttl = CacheTTL
	}
	path := filepath.Join(f.options.Path, tenant)
	return NewPebbleStore(path, cache.NewExpiringCache(ttl, CacheCleanupInterval))
}
