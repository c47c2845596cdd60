package azure

import "github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

func NewSharedKeyCredential(accountName, accountKey string) (*aztables.SharedKeyCredential, error) {
	return aztables.NewSharedKeyCredential(accountName, accountKey)
}

// NewStoreOptions picks the credential strategy from what is configured:
// an account name and key select shared key auth, anything else falls back
// to DefaultAzureCredential.
func NewStoreOptions(prefix, endpoint, account, key string) (*AzureStoreOptions, error) {
	options := &AzureStoreOptions{
		Prefix:   prefix,
		Endpoint: endpoint,
	}
	if account == "" || key == "" {
		options.UseDefaultAzureCredential = true
		return options, nil
	}

	credential, err := NewSharedKeyCredential(account, key)
	if err != nil {
		return nil, err
	}
	options.SharedKeyCredential = credential
	return options, nil
}
