// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var _ RateLimiter = (*TokenBucketRateLimiter)(nil)

// TokenBucketRateLimiter is the in-process fallback used when no shared
// counter store (redis) is configured: one golang.org/x/time/rate limiter
// per key. Counts are per instance, so limits are only approximate behind a
// load balancer.
type TokenBucketRateLimiter struct {
	mu       sync.Mutex
	limiters map[Key]*rate.Limiter

	limit  int64
	window time.Duration
}

func TokenBucketFactory() LimiterFactory {
	return func(l int64, w time.Duration) RateLimiter {
		return &TokenBucketRateLimiter{
			limiters: make(map[Key]*rate.Limiter),
			limit:    l,
			window:   w,
		}
	}
}

func (t *TokenBucketRateLimiter) limiterFor(key Key) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	lim, ok := t.limiters[key]
	if !ok {
		// refill spread over the window, full burst available up front
		lim = rate.NewLimiter(rate.Limit(float64(t.limit)/t.window.Seconds()), int(t.limit))
		t.limiters[key] = lim
	}
	return lim
}

// Allow implements RateLimiter.
func (t *TokenBucketRateLimiter) Allow(_ context.Context, key Key) (Result, error) {
	lim := t.limiterFor(key)
	reservation := lim.Reserve()
	if !reservation.OK() {
		return Result{Allowed: false, Limit: t.limit, Window: t.window}, nil
	}
	delay := reservation.Delay()
	if delay > 0 {
		reservation.Cancel()
		return Result{
			Allowed:    false,
			RetryAfter: delay,
			Limit:      t.limit,
			Window:     t.window,
		}, nil
	}
	remaining := int64(lim.Tokens())
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   true,
		Remaining: remaining,
		Limit:     t.limit,
		Window:    t.window,
	}, nil
}
