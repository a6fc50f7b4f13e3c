package http

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsWithinBudget(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(3, 3, time.Minute)
	defer rl.Close()

	current := time.Unix(0, 0)
	rl.now = func() time.Time {
		return current
	}

	key := "1.2.3.4"

	for i := 0; i < 3; i++ {
		if !rl.Allow(key) {
			t.Fatalf("expected request %d to be allowed", i+1)
		}
	}

	if rl.Allow(key) {
		t.Fatalf("expected fourth request to be denied")
	}

	current = current.Add(time.Second)

	if !rl.Allow(key) {
		t.Fatalf("expected request after refill to be allowed")
	}
}

func TestRateLimiterKeepsClientsApart(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 0.1, time.Minute)
	defer rl.Close()

	current := time.Unix(0, 0)
	rl.now = func() time.Time {
		return current
	}

	if !rl.Allow("a") {
		t.Fatalf("expected first request from a to be allowed")
	}
	if rl.Allow("a") {
		t.Fatalf("expected second request from a to be denied")
	}
	if !rl.Allow("b") {
		t.Fatalf("expected first request from b to be allowed")
	}
}

func TestRateLimiterPrunesIdleClients(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 1, time.Hour)
	defer rl.Close()

	current := time.Unix(0, 0)
	rl.now = func() time.Time {
		return current
	}

	rl.Allow("idle")
	current = current.Add(2 * time.Hour)
	rl.pruneStale()

	rl.mu.Lock()
	remaining := len(rl.clients)
	rl.mu.Unlock()

	if remaining != 0 {
		t.Fatalf("expected idle client to be pruned, %d remain", remaining)
	}
}
