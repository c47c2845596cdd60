package resourcekit

import (
	"io"
	"sync"

	"github.com/fgrzl/resourcekit/pkg/api"
)

// ClientPool caches one Client per key, usually a tenant id or an endpoint.
type ClientPool struct {
	mu        sync.RWMutex
	clients   map[string]Client
	providers map[string]api.BidiStreamProvider
	factory   func(key string) api.BidiStreamProvider
}

func NewClientPool(factory func(key string) api.BidiStreamProvider) *ClientPool {
	return &ClientPool{
		clients:   make(map[string]Client),
		providers: make(map[string]api.BidiStreamProvider),
		factory:   factory,
	}
}

func (p *ClientPool) GetClient(key string) Client {
	p.mu.RLock()
	client, ok := p.clients[key]
	p.mu.RUnlock()
	if ok {
		return client
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Re-check in case it was created between locks
	if client, ok := p.clients[key]; ok {
		return client
	}

	provider := p.factory(key)
	client = NewClient(provider)
	p.clients[key] = client
	p.providers[key] = provider
	return client
}

// Close drops every cached client and closes the providers that can be
// closed.
func (p *ClientPool) Close() {
	p.mu.Lock()
	providers := p.providers
	p.clients = make(map[string]Client)
	p.providers = make(map[string]api.BidiStreamProvider)
	p.mu.Unlock()

	for _, provider := range providers {
		if c, ok := provider.(io.Closer); ok {
			_ = c.Close()
		}
	}
}
