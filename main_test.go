package main

import (
	"context"
	"testing"
	"time"

	"app/modules/appconfig"
	"app/modules/clock"
	rl "app/modules/ratelimit"
)

func TestLimiterFactoryWithoutRedisFallsBackToTokenBucket(t *testing.T) {
	factory, cleanup, err := limiterFactoryFor(context.Background(), clock.RealClock{}, &appconfig.Config{})
	if err != nil {
		t.Fatalf("limiter selection without redis: %v", err)
	}
	defer cleanup()

	lim := factory(2, time.Second)
	if _, ok := lim.(*rl.TokenBucketRateLimiter); !ok {
		t.Fatalf("limiter = %T, want in-process token bucket", lim)
	}
	res, err := lim.Allow(context.Background(), "10.0.0.1")
	if err != nil || !res.Allowed {
		t.Fatalf("first request: err=%v allowed=%v", err, res.Allowed)
	}
}
