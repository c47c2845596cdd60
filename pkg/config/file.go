package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the YAML configuration of the resourcekit command.
type File struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
}

// ServerConfig configures `resourcekit serve`.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr"`

	// PublicEndpoint is the WebSocket URL advertised in /config.json.
	PublicEndpoint string `yaml:"public_endpoint"`

	// Secret signs and validates HMAC tokens.
	Secret string `yaml:"secret"`

	// PublicKey is a PEM file; when set, tokens are validated as RS256
	// instead of with Secret.
	PublicKey string `yaml:"public_key"`

	Store    StoreConfig     `yaml:"store"`
	Features map[string]bool `yaml:"features,omitempty"`
}

// StoreConfig selects the storage backend.
type StoreConfig struct {
	// Kind is "pebble" or "azure".
	Kind   string      `yaml:"kind"`
	Pebble PebbleFile  `yaml:"pebble"`
	Azure  AzureConfig `yaml:"azure"`
}

type PebbleFile struct {
	Path     string        `yaml:"path"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type AzureConfig struct {
	Prefix   string `yaml:"prefix"`
	Endpoint string `yaml:"endpoint"`
	// Account and Key select shared key auth; otherwise the default Azure
	// credential chain is used.
	Account string `yaml:"account"`
	Key     string `yaml:"key"`
}

// ClientConfig configures the watch/set commands.
type ClientConfig struct {
	// ConfigURL points at a published Document. When empty Endpoint is used.
	ConfigURL string `yaml:"config_url"`
	Endpoint  string `yaml:"endpoint"`
	Token     string `yaml:"token"`
}

// Default returns the configuration used when no file is given.
func Default() *File {
	return &File{
		Server: ServerConfig{
			Addr:           ":8080",
			PublicEndpoint: "ws://localhost:8080/ws",
			Store: StoreConfig{
				Kind: "pebble",
				Pebble: PebbleFile{
					Path:     "data",
					CacheTTL: 5 * time.Minute,
				},
				Azure: AzureConfig{
					Prefix: "resourcekit",
				},
			},
		},
		Client: ClientConfig{
			Endpoint: "ws://localhost:8080/ws",
		},
	}
}

// LoadFile reads path over the defaults and applies environment overrides.
// An empty path yields the defaults plus overrides.
func LoadFile(path string) (*File, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

func (f *File) applyEnv(getenv func(string) string) {
	overrides := []struct {
		name   string
		target *string
	}{
		{"RESOURCEKIT_ADDR", &f.Server.Addr},
		{"RESOURCEKIT_SECRET", &f.Server.Secret},
		{"RESOURCEKIT_PUBLIC_KEY", &f.Server.PublicKey},
		{"RESOURCEKIT_STORE", &f.Server.Store.Kind},
		{"RESOURCEKIT_AZURE_ACCOUNT", &f.Server.Store.Azure.Account},
		{"RESOURCEKIT_AZURE_KEY", &f.Server.Store.Azure.Key},
		{"RESOURCEKIT_AZURE_ENDPOINT", &f.Server.Store.Azure.Endpoint},
		{"RESOURCEKIT_CONFIG_URL", &f.Client.ConfigURL},
		{"RESOURCEKIT_ENDPOINT", &f.Client.Endpoint},
		{"RESOURCEKIT_TOKEN", &f.Client.Token},
	}
	for _, o := range overrides {
		if v := getenv(o.name); v != "" {
			*o.target = v
		}
	}
}

// ValidateServer checks the fields `serve` depends on.
func (f *File) ValidateServer() error {
	if f.Server.Addr == "" {
		return errors.New("config: server.addr is required")
	}
	if f.Server.Secret == "" && f.Server.PublicKey == "" {
		return errors.New("config: server.secret or server.public_key is required")
	}
	switch f.Server.Store.Kind {
	case "pebble":
		if f.Server.Store.Pebble.Path == "" {
			return errors.New("config: server.store.pebble.path is required")
		}
	case "azure":
		if f.Server.Store.Azure.Endpoint == "" {
			return errors.New("config: server.store.azure.endpoint is required")
		}
	default:
		return fmt.Errorf("config: unknown store kind %q", f.Server.Store.Kind)
	}
	return nil
}

// Document returns the client document the server publishes.
func (f *File) Document() *Document {
	return &Document{
		Endpoint: f.Server.PublicEndpoint,
		Features: f.Server.Features,
	}
}
