// Package globaltime is the process-wide clock. Production code reads it
// through Now/UTC; tests pin it with SetMockTime so timestamp assertions
// stay deterministic.
package globaltime

import (
	"sync"
	"time"
)

var clock = struct {
	mu  sync.RWMutex
	now func() time.Time
}{now: time.Now}

func Now() time.Time {
	clock.mu.RLock()
	defer clock.mu.RUnlock()
	return clock.now()
}

// UTC returns the current clock reading in UTC. Database writes always
// go through this so stored timestamps are zone-free.
func UTC() time.Time {
	return Now().UTC()
}

// SetMockTime freezes the clock at t until ResetTime is called.
func SetMockTime(t time.Time) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.now = func() time.Time { return t }
}

// ResetTime restores the real clock.
func ResetTime() {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.now = time.Now
}
