package node

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fgrzl/resourcekit/pkg/storage"
)

// NodeManager manages per-tenant nodes.
type NodeManager interface {
	GetOrCreate(ctx context.Context, tenant string) (Node, error)
	Remove(ctx context.Context, tenant string)
	Close()
}

type nodeManager struct {
	mu           sync.RWMutex
	storeFactory storage.StoreFactory
	options      []Option
	nodes        map[string]Node
	closeOnce    sync.Once
}

// NewNodeManager creates a new NodeManager with the given factory. opts are
// applied to every node it creates.
func NewNodeManager(storeFactory storage.StoreFactory, opts ...Option) NodeManager {
	return &nodeManager{
		storeFactory: storeFactory,
		options:      opts,
		nodes:        make(map[string]Node),
	}
}

func (m *nodeManager) GetOrCreate(ctx context.Context, tenant string) (Node, error) {
	m.mu.RLock()
	n, ok := m.nodes[tenant]
	m.mu.RUnlock()
	if ok {
		return n, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if n, ok := m.nodes[tenant]; ok {
		return n, nil
	}

	store, err := m.storeFactory.NewStore(ctx, tenant)
	if err != nil {
		return nil, err
	}

	n = NewNode(tenant, store, m.options...)
	m.nodes[tenant] = n
	slog.DebugContext(ctx, "node: created", slog.String("tenant", tenant))
	return n, nil
}

func (m *nodeManager) Remove(ctx context.Context, tenant string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n, ok := m.nodes[tenant]; ok {
		n.Close()
		delete(m.nodes, tenant)
	}
}

func (m *nodeManager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for tenant, n := range m.nodes {
			n.Close()
			delete(m.nodes, tenant)
		}
	})
}
