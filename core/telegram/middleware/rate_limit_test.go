package middleware

import (
	"testing"
	"time"
)

func TestRateLimiterPerUser(t *testing.T) {
	rl := NewRateLimiter(RateLimitOptions{Interval: time.Hour, Burst: 2})

	if !rl.Allow(1) || !rl.Allow(1) {
		t.Fatal("burst of two should pass")
	}
	if rl.Allow(1) {
		t.Fatal("third update within the interval should be limited")
	}
	if !rl.Allow(2) {
		t.Fatal("other users are not affected")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(RateLimitOptions{})
	for i := 0; i < 100; i++ {
		if !rl.Allow(1) {
			t.Fatal("zero interval must not limit")
		}
	}
}
