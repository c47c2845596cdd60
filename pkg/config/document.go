package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/tidwall/jsonc"
)

// Document is the client configuration published by a deployment, usually
// at /config.json next to the dashboard.
type Document struct {
	// Endpoint is the WebSocket URL of the backend node.
	Endpoint string          `json:"endpoint"`
	Tenant   string          `json:"tenant,omitempty"`
	Auth     AuthConfig      `json:"auth"`
	Features map[string]bool `json:"features,omitempty"`
}

type AuthConfig struct {
	TokenURL string `json:"tokenUrl,omitempty"`
	ClientID string `json:"clientId,omitempty"`
}

var ErrMissingEndpoint = errors.New("config: endpoint is required")

// Validate checks that the document can be used to connect.
func (d *Document) Validate() error {
	if d.Endpoint == "" {
		return ErrMissingEndpoint
	}
	u, err := url.Parse(d.Endpoint)
	if err != nil {
		return fmt.Errorf("config: invalid endpoint: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("config: unsupported endpoint scheme %q", u.Scheme)
	}
	if d.Auth.TokenURL != "" {
		if _, err := url.Parse(d.Auth.TokenURL); err != nil {
			return fmt.Errorf("config: invalid token url: %w", err)
		}
	}
	return nil
}

// Enabled reports whether a feature flag is switched on.
func (d *Document) Enabled(feature string) bool {
	return d.Features[feature]
}

// Parse decodes and validates a document. Comments and trailing commas are
// accepted.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, fmt.Errorf("config: decode document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}
