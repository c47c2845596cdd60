package resourcekit

import (
	"context"
	"testing"

	"github.com/fgrzl/resourcekit/pkg/api"
	"github.com/stretchr/testify/assert"
)

type closingProvider struct {
	closed int
}

func (p *closingProvider) CallStream(context.Context, api.Routeable) (api.BidiStream, error) {
	return nil, api.Errorf(api.Unavailable, "offline")
}

func (p *closingProvider) Close() error {
	p.closed++
	return nil
}

func TestClientPool(t *testing.T) {
	t.Run("should create one client per key", func(t *testing.T) {
		// Arrange
		created := map[string]int{}
		pool := NewClientPool(func(key string) api.BidiStreamProvider {
			created[key]++
			return &closingProvider{}
		})

		// Act
		a1 := pool.GetClient("a")
		a2 := pool.GetClient("a")
		b := pool.GetClient("b")

		// Assert
		assert.Same(t, a1, a2)
		assert.NotSame(t, a1, b)
		assert.Equal(t, map[string]int{"a": 1, "b": 1}, created)
	})

	t.Run("should close providers and start over", func(t *testing.T) {
		// Arrange
		var providers []*closingProvider
		pool := NewClientPool(func(string) api.BidiStreamProvider {
			p := &closingProvider{}
			providers = append(providers, p)
			return p
		})
		first := pool.GetClient("a")

		// Act
		pool.Close()
		second := pool.GetClient("a")

		// Assert
		assert.NotSame(t, first, second)
		assert.Len(t, providers, 2)
		assert.Equal(t, 1, providers[0].closed)
		assert.Equal(t, 0, providers[1].closed)
	})
}

func TestBinding(t *testing.T) {
	t.Run("should surface endpoint failures", func(t *testing.T) {
		// Arrange
		b := NewBinding(func(context.Context) (string, error) {
			return "", api.Errorf(api.Unavailable, "no config")
		}, NewClientPool(func(string) api.BidiStreamProvider { return &closingProvider{} }))

		// Act
		_, err := b.Client(t.Context())

		// Assert
		assert.Equal(t, api.Unavailable, api.CodeOf(err))
	})
}
