package resource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker(t *testing.T) {
	t.Run("should store the response", func(t *testing.T) {
		// Arrange
		tr := NewTracker[string]("update")
		var during TrackerSnapshot[string]

		// Act
		res, err := tr.Run(t.Context(), func(ctx context.Context) (string, error) {
			during = tr.Snapshot()
			return "ok", nil
		})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "ok", res)
		assert.True(t, during.Loading)
		snap := tr.Snapshot()
		assert.False(t, snap.Loading)
		assert.True(t, snap.HasResponse)
		assert.Equal(t, "ok", snap.Response)
		assert.NoError(t, snap.Err)
	})

	t.Run("should store and return the error", func(t *testing.T) {
		// Arrange
		tr := NewTracker[int]("update")
		boom := errors.New("boom")
		calls := 0

		// Act
		_, err := tr.Run(t.Context(), func(ctx context.Context) (int, error) {
			calls++
			return 0, boom
		})

		// Assert
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
		snap := tr.Snapshot()
		assert.ErrorIs(t, snap.Err, boom)
		assert.False(t, snap.Loading)
		assert.False(t, snap.HasResponse)
	})

	t.Run("should keep only the latest outcome", func(t *testing.T) {
		// Arrange
		tr := NewTracker[int]("update")
		boom := errors.New("boom")
		_, _ = tr.Run(t.Context(), func(ctx context.Context) (int, error) { return 0, boom })

		// Act
		_, _ = tr.Run(t.Context(), func(ctx context.Context) (int, error) { return 7, nil })
		recovered := tr.Snapshot()
		_, _ = tr.Run(t.Context(), func(ctx context.Context) (int, error) { return 0, boom })
		failed := tr.Snapshot()

		// Assert
		assert.NoError(t, recovered.Err)
		assert.True(t, recovered.HasResponse)
		assert.Equal(t, 7, recovered.Response)
		assert.ErrorIs(t, failed.Err, boom)
		assert.False(t, failed.HasResponse)
		assert.Zero(t, failed.Response)
	})

	t.Run("should reset to empty", func(t *testing.T) {
		// Arrange
		tr := NewTracker[int]("update")
		_, _ = tr.Run(t.Context(), func(ctx context.Context) (int, error) { return 1, nil })
		_, _ = tr.Run(t.Context(), func(ctx context.Context) (int, error) { return 0, errors.New("boom") })

		// Act
		tr.Reset()

		// Assert
		assert.Equal(t, TrackerSnapshot[int]{}, tr.Snapshot())
	})
}
