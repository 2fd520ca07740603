package assistant

import (
	"testing"
	"time"
)

func TestRateLimiterBurstPerKey(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(0.001, 2)
	t.Cleanup(rl.Close)

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("expected burst of 2 to pass")
	}
	if rl.Allow("a") {
		t.Fatal("expected third request to be throttled")
	}
	if !rl.Allow("b") {
		t.Fatal("expected independent budget per key")
	}
}

func TestRateLimiterEvictsIdleKeys(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(1, 1)
	t.Cleanup(rl.Close)

	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.Allow("stale")
	now = now.Add(rl.idle / 2)
	rl.Allow("fresh")
	now = now.Add(rl.idle/2 + time.Second)

	if n := rl.evict(); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	rl.mu.Lock()
	_, stale := rl.clients["stale"]
	_, fresh := rl.clients["fresh"]
	rl.mu.Unlock()
	if stale || !fresh {
		t.Fatalf("unexpected clients after eviction: stale=%v fresh=%v", stale, fresh)
	}
}
