package agent

import (
	"testing"
	"time"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("u1") || !rl.Allow("u1") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("u1") {
		t.Fatal("third request within the window should be rejected")
	}
	if !rl.Allow("u2") {
		t.Fatal("limits are per key")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow("u1") {
		t.Fatal("request after the window should pass")
	}
}

func TestRateLimiterEvictsIdleKeys(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(5, time.Minute)
	defer rl.Stop()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("idle")
	now = now.Add(2 * time.Minute)
	rl.evict()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.requests["idle"]; ok {
		t.Fatal("expected idle key to be evicted")
	}
}
