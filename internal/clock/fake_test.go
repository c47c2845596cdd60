package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeTimer(t *testing.T) {
	t.Run("should fire once the deadline is reached", func(t *testing.T) {
		// Arrange
		c := Fake(epoch)
		timer := c.NewTimer(time.Second)

		// Act
		c.Advance(999 * time.Millisecond)
		select {
		case <-timer.C:
			t.Fatal("timer fired early")
		default:
		}
		c.Advance(time.Millisecond)

		// Assert
		select {
		case fired := <-timer.C:
			assert.Equal(t, epoch.Add(time.Second), fired)
		default:
			t.Fatal("timer did not fire")
		}
		assert.Equal(t, 0, c.PendingCount())
	})

	t.Run("should not fire after stop", func(t *testing.T) {
		// Arrange
		c := Fake(epoch)
		timer := c.NewTimer(time.Second)

		// Act
		stopped := timer.Stop()
		c.Advance(time.Hour)

		// Assert
		assert.True(t, stopped)
		assert.False(t, timer.Stop())
		assert.Len(t, timer.C, 0)
	})

	t.Run("should wait until a timer is armed", func(t *testing.T) {
		// Arrange
		c := Fake(epoch)
		armed := make(chan *Timer)

		// Act
		go func() { armed <- c.NewTimer(time.Minute) }()
		c.WaitForTimers(1)

		// Assert
		require.Equal(t, 1, c.PendingCount())
		<-armed
	})
}

func TestFakeTicker(t *testing.T) {
	t.Run("should reschedule after every tick", func(t *testing.T) {
		// Arrange
		c := Fake(epoch)
		ticker := c.NewTicker(time.Second)
		defer ticker.Stop()

		// Act
		c.Advance(time.Second)
		<-ticker.C
		c.Advance(time.Second)

		// Assert
		assert.Equal(t, epoch.Add(2*time.Second), <-ticker.C)
		assert.Equal(t, 1, c.PendingCount())
	})
}
