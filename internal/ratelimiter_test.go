package internal

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !limiter.Allow("10.0.0.1") {
			t.Fatalf("hit %d rejected inside the limit", i+1)
		}
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatal("hit over the limit allowed")
	}
	// other keys track their own windows
	if !limiter.Allow("10.0.0.2") {
		t.Fatal("unrelated key rejected")
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	limiter := NewRateLimiter(1, 10*time.Millisecond)
	if !limiter.Allow("10.0.0.1") {
		t.Fatal("first hit rejected")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatal("second immediate hit allowed")
	}
	time.Sleep(20 * time.Millisecond)
	if !limiter.Allow("10.0.0.1") {
		t.Fatal("hit after window expiry rejected")
	}
}
