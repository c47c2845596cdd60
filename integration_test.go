package resourcekit_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/fgrzl/enumerators"
	"github.com/fgrzl/resourcekit"
	"github.com/fgrzl/resourcekit/pkg/api"
	"github.com/fgrzl/resourcekit/pkg/auth"
	"github.com/fgrzl/resourcekit/pkg/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 5 * time.Second
const tick = 10 * time.Millisecond

type lightLevel struct {
	Level int `json:"level"`
}

type alert struct {
	ID       string `json:"id"`
	Severity string `json:"severity"`
}

func alertID(a alert) string { return a.ID }

func alertItem(t *testing.T, id, severity string) *resourcekit.Item {
	t.Helper()
	payload, err := json.Marshal(alert{ID: id, Severity: severity})
	require.NoError(t, err)
	return &resourcekit.Item{ID: id, Payload: payload}
}

func TestUnaryCalls(t *testing.T) {
	for name, h := range configurations(t) {
		t.Run("should update and read a trait "+name, func(t *testing.T) {
			// Arrange
			ctx := t.Context()

			// Act
			updated, err := h.Client.UpdateTrait(ctx, "lamp-1", "light", json.RawMessage(`{"level":40}`))
			require.NoError(t, err)
			value, err := h.Client.GetTrait(ctx, "lamp-1", "light")

			// Assert
			require.NoError(t, err)
			assert.JSONEq(t, `{"level":40}`, string(value.Payload))
			assert.Equal(t, updated.ChangeTime, value.ChangeTime)
		})

		t.Run("should report unknown traits as not found "+name, func(t *testing.T) {
			// Act
			_, err := h.Client.GetTrait(t.Context(), "lamp-404", "light")

			// Assert
			assert.Equal(t, api.NotFound, api.CodeOf(err))
		})

		t.Run("should upsert and delete items "+name, func(t *testing.T) {
			// Arrange
			ctx := t.Context()

			// Act
			created, err := h.Client.UpsertItem(ctx, "alerts", alertItem(t, "a1", "low"))
			require.NoError(t, err)
			replaced, err := h.Client.UpsertItem(ctx, "alerts", alertItem(t, "a1", "high"))
			require.NoError(t, err)
			deleted, err := h.Client.DeleteItem(ctx, "alerts", "a1")
			require.NoError(t, err)
			_, missing := h.Client.DeleteItem(ctx, "alerts", "a1")

			// Assert
			assert.Nil(t, created.OldValue)
			require.NotNil(t, replaced.OldValue)
			assert.JSONEq(t, `{"id":"a1","severity":"low"}`, string(replaced.OldValue.Payload))
			assert.Nil(t, deleted.NewValue)
			assert.Equal(t, "a1", deleted.OldValue.ID)
			assert.Equal(t, api.NotFound, api.CodeOf(missing))
		})

		t.Run("should list collections and their items "+name, func(t *testing.T) {
			// Arrange
			ctx := t.Context()
			for _, id := range []string{"z2", "z1"} {
				_, err := h.Client.UpsertItem(ctx, "zones", alertItem(t, id, "none"))
				require.NoError(t, err)
			}

			// Act
			items, err := enumerators.ToSlice(h.Client.ListCollection(ctx, "zones"))
			require.NoError(t, err)
			names, err := enumerators.ToSlice(h.Client.GetCollections(ctx))

			// Assert
			require.NoError(t, err)
			require.Len(t, items, 2)
			assert.Equal(t, "z1", items[0].ID)
			assert.Equal(t, "z2", items[1].ID)
			assert.Contains(t, names, "zones")
		})
	}
}

func TestWatchTrait(t *testing.T) {
	for name, h := range configurations(t) {
		t.Run("should follow a trait through the published config "+name, func(t *testing.T) {
			// Arrange
			ctx := t.Context()
			scope := resource.NewScope()
			defer scope.Dispose()
			binding := resourcekit.NewBinding(publishedConfig(t, h.Endpoint).Endpoint, h.Pool)
			_, err := h.Client.UpdateTrait(ctx, "lamp-2", "light", json.RawMessage(`{"level":10}`))
			require.NoError(t, err)

			// Act
			light := resourcekit.WatchTrait[lightLevel](ctx, scope, binding, "lamp-2", "light")
			require.Eventually(t, func() bool {
				return light.Snapshot().Value.Level == 10
			}, waitFor, tick)
			_, err = h.Client.UpdateTrait(ctx, "lamp-2", "light", json.RawMessage(`{"level":20}`))
			require.NoError(t, err)

			// Assert
			require.Eventually(t, func() bool {
				return light.Snapshot().Value.Level == 20
			}, waitFor, tick)
			snap := light.Snapshot()
			assert.False(t, snap.Loading)
			assert.NoError(t, snap.StreamError)
			assert.NotNil(t, light.Stream())
		})

		t.Run("should stop streaming once the scope is disposed "+name, func(t *testing.T) {
			// Arrange
			ctx := t.Context()
			scope := resource.NewScope()
			_, err := h.Client.UpdateTrait(ctx, "lamp-3", "light", json.RawMessage(`{"level":1}`))
			require.NoError(t, err)
			light := resourcekit.WatchTrait[lightLevel](ctx, scope, h.Binding, "lamp-3", "light")
			require.Eventually(t, func() bool { return light.Snapshot().HasValue }, waitFor, tick)

			// Act
			scope.Dispose()
			<-light.Stream().Done()
			_, err = h.Client.UpdateTrait(ctx, "lamp-3", "light", json.RawMessage(`{"level":2}`))
			require.NoError(t, err)

			// Assert
			assert.Equal(t, resource.Cancelled, light.Stream().State())
			assert.Equal(t, 1, light.Snapshot().Value.Level)
		})
	}
}

func TestWatchCollection(t *testing.T) {
	for name, h := range configurations(t) {
		t.Run("should apply snapshot and live changes "+name, func(t *testing.T) {
			// Arrange
			ctx := t.Context()
			scope := resource.NewScope()
			defer scope.Dispose()
			for _, id := range []string{"a1", "a2"} {
				_, err := h.Client.UpsertItem(ctx, "live-alerts", alertItem(t, id, "low"))
				require.NoError(t, err)
			}

			// Act
			alerts := resourcekit.WatchCollection(ctx, scope, h.Binding, "live-alerts", alertID)
			require.Eventually(t, func() bool { return alerts.Len() == 2 }, waitFor, tick)

			_, err := h.Client.DeleteItem(ctx, "live-alerts", "a1")
			require.NoError(t, err)
			_, err = h.Client.UpsertItem(ctx, "live-alerts", alertItem(t, "a2", "high"))
			require.NoError(t, err)

			// Assert
			require.Eventually(t, func() bool {
				snap := alerts.Snapshot()
				_, stillThere := snap.Value["a1"]
				return !stillThere && snap.Value["a2"].Severity == "high"
			}, waitFor, tick)
		})
	}
}

func TestWatchItems(t *testing.T) {
	t.Run("should key raw items by id", func(t *testing.T) {
		// Arrange
		h := pebbleTestHarness(t)
		ctx := t.Context()
		scope := resource.NewScope()
		defer scope.Dispose()
		_, err := h.Client.UpsertItem(ctx, "zones", alertItem(t, "z1", "none"))
		require.NoError(t, err)

		// Act
		zones := resourcekit.WatchItems(ctx, scope, h.Binding, "zones")

		// Assert
		require.Eventually(t, func() bool { return zones.Len() == 1 }, waitFor, tick)
		item, ok := zones.Get("z1")
		require.True(t, ok)
		assert.JSONEq(t, `{"id":"z1","severity":"none"}`, string(item.Payload))
		assert.False(t, zones.Snapshot().UpdateTime.IsZero())
	})
}

func TestReconnect(t *testing.T) {
	for name, h := range configurations(t) {
		t.Run("should resume after the connection drops "+name, func(t *testing.T) {
			// Arrange
			ctx := t.Context()
			scope := resource.NewScope()
			defer scope.Dispose()
			_, err := h.Client.UpdateTrait(ctx, "lamp-9", "light", json.RawMessage(`{"level":1}`))
			require.NoError(t, err)
			light := resourcekit.WatchTrait[lightLevel](ctx, scope, h.Binding, "lamp-9", "light")
			require.Eventually(t, func() bool { return light.Snapshot().HasValue }, waitFor, tick)

			// Act
			h.Pool.Close()
			_, err = h.Pool.GetClient(h.Endpoint).UpdateTrait(ctx, "lamp-9", "light", json.RawMessage(`{"level":30}`))
			require.NoError(t, err)

			// Assert
			require.Eventually(t, func() bool {
				snap := light.Snapshot()
				return snap.Value.Level == 30 && snap.StreamError == nil
			}, waitFor, tick)
		})
	}
}

func TestAuthFailure(t *testing.T) {
	t.Run("should surface rejected credentials and fire the hook", func(t *testing.T) {
		// Arrange
		h := pebbleTestHarness(t)
		ctx := t.Context()
		scope := resource.NewScope()
		defer scope.Dispose()

		var once sync.Once
		rejected := make(chan error, 1)
		token := createToken(t, "acme", "other::scope")
		pool := resourcekit.NewEndpointPool(auth.StaticToken(token), func(err error) {
			once.Do(func() { rejected <- err })
		})
		defer pool.Close()
		binding := resourcekit.NewBinding(publishedConfig(t, h.Endpoint).Endpoint, pool)

		// Act
		light := resourcekit.WatchTrait[lightLevel](ctx, scope, binding, "lamp-1", "light")

		// Assert
		select {
		case err := <-rejected:
			assert.True(t, api.IsAuthError(err))
		case <-time.After(waitFor):
			t.Fatal("auth failure hook not called")
		}
		require.Eventually(t, func() bool {
			return api.IsAuthError(light.Snapshot().StreamError)
		}, waitFor, tick)
		assert.False(t, light.Snapshot().Loading)
	})
}

func TestUpdateTrait(t *testing.T) {
	t.Run("should record the response on the tracker", func(t *testing.T) {
		// Arrange
		h := pebbleTestHarness(t)
		tracker := resource.NewTracker[*resourcekit.TraitValue]("set-light")

		// Act
		value, err := resourcekit.UpdateTrait(t.Context(), tracker, h.Binding, "lamp-7", "light", lightLevel{Level: 70})

		// Assert
		require.NoError(t, err)
		snap := tracker.Snapshot()
		assert.False(t, snap.Loading)
		assert.True(t, snap.HasResponse)
		assert.Same(t, value, snap.Response)
		assert.JSONEq(t, `{"level":70}`, string(value.Payload))
	})

	t.Run("should record failures without retrying", func(t *testing.T) {
		// Arrange
		h := pebbleTestHarness(t)
		tracker := resource.NewTracker[*resourcekit.TraitValue]("set-light")

		// Act
		_, err := resourcekit.UpdateTrait(t.Context(), tracker, h.Binding, "", "light", lightLevel{Level: 1})

		// Assert
		assert.Equal(t, api.InvalidArgument, api.CodeOf(err))
		assert.Equal(t, api.InvalidArgument, api.CodeOf(tracker.Snapshot().Err))
	})
}
