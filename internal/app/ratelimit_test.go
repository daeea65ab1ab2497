package app

import (
	"testing"
	"time"
)

func TestCallRateLimiter(t *testing.T) {
	rl := NewCallRateLimiter(2, 50*time.Millisecond)

	if !rl.Allow("alice") || !rl.Allow("alice") {
		t.Fatal("attempts within the limit must pass")
	}
	if rl.Allow("alice") {
		t.Fatal("attempt over the limit must be blocked")
	}
	if !rl.Allow("bob") {
		t.Fatal("limits are per user")
	}

	time.Sleep(60 * time.Millisecond)
	if !rl.Allow("alice") {
		t.Fatal("window expiry must unblock the user")
	}
}
