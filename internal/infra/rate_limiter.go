package infra

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket: burst capacity refilled at a fixed
// rate. Safe for concurrent use.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	burst      float64
	perSecond  float64
	lastRefill time.Time
	now        func() time.Time
}

// NewRateLimiter creates a bucket holding burst tokens, refilled at
// perSecond tokens per second.
func NewRateLimiter(burst int, perSecond float64) *RateLimiter {
	now := time.Now
	return &RateLimiter{
		tokens:     float64(burst),
		burst:      float64(burst),
		perSecond:  perSecond,
		lastRefill: now(),
		now:        now,
	}
}

// SetClock replaces the time source, for tests. Wait still sleeps on the
// wall clock.
func (r *RateLimiter) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Wait blocks until a token is available or ctx ends.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}
		// Time until one full token accrues.
		wait := time.Duration((1 - r.tokens) / r.perSecond * float64(time.Second))
		r.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAcquire takes a token without blocking, reporting whether one was
// available.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// refill accrues tokens for elapsed time; callers hold r.mu.
func (r *RateLimiter) refill() {
	now := r.now()
	r.tokens += now.Sub(r.lastRefill).Seconds() * r.perSecond
	if r.tokens > r.burst {
		r.tokens = r.burst
	}
	r.lastRefill = now
}

// Pre-configured rate limiters for the Aster API, shared across the
// process so every client instance draws from the same budget.
var (
	asterOrderLimiter   *RateLimiter
	asterAccountLimiter *RateLimiter
	asterMarketLimiter  *RateLimiter
	rateLimiterOnce     sync.Once
)

// GetAsterOrderLimiter returns the rate limiter for order endpoints.
// Limit: 10 requests/second with burst of 5.
func GetAsterOrderLimiter() *RateLimiter {
	rateLimiterOnce.Do(initAsterLimiters)
	return asterOrderLimiter
}

// GetAsterAccountLimiter returns the rate limiter for account endpoints.
// Limit: 10 requests/second with burst of 5.
func GetAsterAccountLimiter() *RateLimiter {
	rateLimiterOnce.Do(initAsterLimiters)
	return asterAccountLimiter
}

// GetAsterMarketLimiter returns the rate limiter for market data endpoints.
// Limit: 20 requests/second with burst of 10.
func GetAsterMarketLimiter() *RateLimiter {
	rateLimiterOnce.Do(initAsterLimiters)
	return asterMarketLimiter
}

func initAsterLimiters() {
	// Conservative limits to avoid IP bans
	asterOrderLimiter = NewRateLimiter(5, 10)
	asterAccountLimiter = NewRateLimiter(5, 10)
	asterMarketLimiter = NewRateLimiter(10, 20)
}
