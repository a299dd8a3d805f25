package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCountdown_RefreshClampsToZero(t *testing.T) {
	start := gameEpoch
	c := NewCountdown(start, 5*time.Minute)
	assert.Equal(t, 300, c.RemainingSeconds)

	c.Refresh(start.Add(90 * time.Second))
	assert.Equal(t, 210, c.RemainingSeconds)

	c.Refresh(start.Add(5 * time.Minute))
	assert.Equal(t, 0, c.RemainingSeconds)
	assert.True(t, c.Expired(start.Add(5*time.Minute)))

	// Negative remainders (e.g. a tick landing past the deadline) clamp.
	c.Refresh(start.Add(6 * time.Minute))
	assert.Equal(t, 0, c.RemainingSeconds)
}

func TestRestoreCountdown_AnchorsAtLoadTime(t *testing.T) {
	loadedAt := gameEpoch.Add(48 * time.Hour)
	c := RestoreCountdown(loadedAt, 180*time.Second)
	assert.Equal(t, 180, c.RemainingSeconds)
	assert.Equal(t, loadedAt.Add(180*time.Second), c.EndTime)

	invalid := RestoreCountdown(loadedAt, -5*time.Second)
	assert.Equal(t, 0, invalid.RemainingSeconds)
}
