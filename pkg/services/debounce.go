package services

import (
	"sync"
	"time"
)

// DebounceCoordinator suppresses repeat processing of a key within a
// window. The first occurrence of a key is processed and recorded;
// later occurrences within the window are dropped. Recorded keys are
// removed after a TTL so the map stays small.
//
// ShouldProcess takes the observation time explicitly so callers and
// tests control the clock; only key expiry runs on real timers.
type DebounceCoordinator struct {
	window time.Duration
	ttl    time.Duration

	mu      sync.Mutex
	entries map[string]time.Time
	timers  map[string]*time.Timer
}

// NewDebounceCoordinator creates a coordinator with the given
// suppression window and cleanup TTL.
func NewDebounceCoordinator(window, ttl time.Duration) *DebounceCoordinator {
	return &DebounceCoordinator{
		window:  window,
		ttl:     ttl,
		entries: make(map[string]time.Time),
		timers:  make(map[string]*time.Timer),
	}
}

// ShouldProcess reports whether the key should be processed at now.
// A true result records the key and schedules its expiry; a false
// result leaves the recorded time untouched, so a burst of duplicates
// cannot extend its own suppression window.
func (d *DebounceCoordinator) ShouldProcess(key string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.entries[key]; ok && now.Sub(last) < d.window {
		return false
	}

	d.entries[key] = now
	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	d.timers[key] = time.AfterFunc(d.ttl, func() { d.expire(key) })
	return true
}

// Stop cancels all outstanding expiry timers and clears the state.
func (d *DebounceCoordinator) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, t := range d.timers {
		t.Stop()
	}
	d.entries = make(map[string]time.Time)
	d.timers = make(map[string]*time.Timer)
}

// expire removes a key once its TTL has elapsed. The recorded time is
// re-checked under the lock: a timer that fired concurrently with a
// refreshing ShouldProcess must not delete the fresh entry.
func (d *DebounceCoordinator) expire(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.entries[key]; ok && time.Since(last) >= d.ttl {
		delete(d.entries, key)
		delete(d.timers, key)
	}
}

// size returns the number of tracked keys. Unexported — used by tests.
func (d *DebounceCoordinator) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
