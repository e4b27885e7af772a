package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var debounceBase = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func TestShouldProcess_FirstOccurrence(t *testing.T) {
	d := NewDebounceCoordinator(time.Second, time.Minute)
	defer d.Stop()

	assert.True(t, d.ShouldProcess("exec-1:completed", debounceBase))
}

func TestShouldProcess_SuppressesWithinWindow(t *testing.T) {
	d := NewDebounceCoordinator(time.Second, time.Minute)
	defer d.Stop()

	require.True(t, d.ShouldProcess("exec-1:completed", debounceBase))
	assert.False(t, d.ShouldProcess("exec-1:completed", debounceBase.Add(500*time.Millisecond)))
	assert.True(t, d.ShouldProcess("exec-2:completed", debounceBase.Add(500*time.Millisecond)),
		"Different keys do not suppress each other")
}

func TestShouldProcess_ReprocessAtWindowBoundary(t *testing.T) {
	d := NewDebounceCoordinator(time.Second, time.Minute)
	defer d.Stop()

	require.True(t, d.ShouldProcess("exec-1:completed", debounceBase))
	assert.True(t, d.ShouldProcess("exec-1:completed", debounceBase.Add(time.Second)))
}

func TestShouldProcess_DuplicatesDoNotExtendWindow(t *testing.T) {
	d := NewDebounceCoordinator(time.Second, time.Minute)
	defer d.Stop()

	require.True(t, d.ShouldProcess("exec-1:completed", debounceBase))
	require.False(t, d.ShouldProcess("exec-1:completed", debounceBase.Add(800*time.Millisecond)))

	// Measured from the first occurrence, not the suppressed one.
	assert.True(t, d.ShouldProcess("exec-1:completed", debounceBase.Add(1100*time.Millisecond)))
}

func TestExpiryRemovesKeys(t *testing.T) {
	d := NewDebounceCoordinator(10*time.Millisecond, 20*time.Millisecond)
	defer d.Stop()

	require.True(t, d.ShouldProcess("exec-1:completed", time.Now()))
	require.True(t, d.ShouldProcess("exec-2:completed", time.Now()))
	require.Equal(t, 2, d.size())

	require.Eventually(t, func() bool {
		return d.size() == 0
	}, time.Second, 5*time.Millisecond, "Keys must be reaped after the TTL")
}

func TestDebounceStop(t *testing.T) {
	d := NewDebounceCoordinator(time.Second, time.Minute)
	require.True(t, d.ShouldProcess("exec-1:completed", debounceBase))
	require.True(t, d.ShouldProcess("exec-2:completed", debounceBase))

	d.Stop()
	assert.Equal(t, 0, d.size())

	// A stopped coordinator still accepts new keys.
	assert.True(t, d.ShouldProcess("exec-1:completed", debounceBase))
	d.Stop()
}
