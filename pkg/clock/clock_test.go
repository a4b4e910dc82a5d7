package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/screwyprof/hivestake/pkg/clock"
)

func TestManualClock(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("it stays frozen until advanced", func(t *testing.T) {
		t.Parallel()

		// Arrange
		c := clock.NewManual(start)

		// Act & Assert
		assert.Equal(t, start, c.Now())
		assert.Equal(t, start, c.Now())
	})

	t.Run("it advances by the given duration", func(t *testing.T) {
		t.Parallel()

		// Arrange
		c := clock.NewManual(start)

		// Act
		got := c.Advance(30 * 24 * time.Hour)

		// Assert
		assert.Equal(t, start.AddDate(0, 0, 30), got)
		assert.Equal(t, got, c.Now())
	})

	t.Run("it jumps to an absolute time", func(t *testing.T) {
		t.Parallel()

		// Arrange
		c := clock.NewManual(start)
		target := start.Add(time.Hour)

		// Act
		c.Set(target)

		// Assert
		assert.Equal(t, target, c.Now())
	})
}
