package azure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/fgrzl/resourcekit/internal/cache"
	"github.com/fgrzl/resourcekit/pkg/storage"
)

const (
	minTableNameLength = 3
	maxTableNameLength = 63
)

var (
	CacheTTL             time.Duration = time.Second * 97
	CacheCleanupInterval time.Duration = time.Second * 59
)

// AzureStoreOptions configures the Azure Table Storage client.
type AzureStoreOptions struct {
	Prefix                    string
	Endpoint                  string
	UseDefaultAzureCredential bool
	SharedKeyCredential       *aztables.SharedKeyCredential
	AllowInsecureHTTP         bool // For local Azurite testing
}

func (o *AzureStoreOptions) Validate() error {
	if o == nil {
		return errors.New("azure store factory: options are required")
	}
	if o.Endpoint == "" {
		return errors.New("azure store factory: endpoint is required")
	}
	if !o.UseDefaultAzureCredential && o.SharedKeyCredential == nil {
		return errors.New("azure store factory: credential strategy is required")
	}
	if strings.HasPrefix(o.Endpoint, "http://") && !o.AllowInsecureHTTP {
		return errors.New("azure store factory: insecure endpoint requires AllowInsecureHTTP")
	}
	return nil
}

// StoreFactory creates Azure-backed stores using shared credentials. Each
// tenant is stored in its own table.
type StoreFactory struct {
	options *AzureStoreOptions
	cred    azcore.TokenCredential
}

// NewStoreFactory validates options and initializes credentials.
func NewStoreFactory(options *AzureStoreOptions) (*StoreFactory, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}

	f := &StoreFactory{options: options}
	if options.SharedKeyCredential == nil {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("azure store factory: credential initialization failed: %w", err)
		}
		f.cred = cred
	}
	return f, nil
}

// NewStore returns a new Azure-backed store scoped to a sanitized table name.
func (f *StoreFactory) NewStore(ctx context.Context, tenant string) (storage.Store, error) {
	if tenant == "" {
		return nil, errors.New("azure store factory: tenant is required")
	}

	tableName := sanitizeTableName(f.options.Prefix + tenant)
	url := fmt.Sprintf("%s/%s", strings.TrimSuffix(f.options.Endpoint, "/"), tableName)

	clientOpts := aztables.ClientOptions{}
	clientOpts.InsecureAllowCredentialWithHTTP = f.options.AllowInsecureHTTP

	var client *aztables.Client
	var err error
	if f.options.SharedKeyCredential != nil {
		client, err = aztables.NewClientWithSharedKey(url, f.options.SharedKeyCredential, &clientOpts)
	} else {
		client, err = aztables.NewClient(url, f.cred, &clientOpts)
	}
	if err != nil {
		return nil, err
	}

	return NewAzureStore(ctx, client, cache.NewExpiringCache(CacheTTL, CacheCleanupInterval))
}

// sanitizeTableName ensures the table name conforms to Azure naming rules.
func sanitizeTableName(name string) string {
	if name == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(maxTableNameLength)

	// Start with a letter
	if isLetter(name[0]) {
		b.WriteByte(name[0])
	} else {
		b.WriteByte('T')
	}

	for i := 1; i < len(name); i++ {
		if isAlphanumeric(name[i]) {
			b.WriteByte(name[i])
		}
	}

	sanitized := b.String()
	for len(sanitized) < minTableNameLength {
		sanitized += "0"
	}
	if len(sanitized) > maxTableNameLength {
		sanitized = sanitized[:maxTableNameLength]
	}

	return sanitized
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isAlphanumeric(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9')
}
