package infra

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_TryAcquire(t *testing.T) {
	rl := NewRateLimiter(2, 10)

	if !rl.TryAcquire() {
		t.Error("expected first TryAcquire to succeed")
	}
	if !rl.TryAcquire() {
		t.Error("expected second TryAcquire to succeed")
	}
	if rl.TryAcquire() {
		t.Error("expected third TryAcquire to fail")
	}
}

func TestRateLimiter_RefillWithFakeClock(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(1, 10)
	rl.SetClock(func() time.Time { return now })

	if !rl.TryAcquire() {
		t.Fatal("expected first TryAcquire to succeed")
	}
	if rl.TryAcquire() {
		t.Error("expected immediate TryAcquire to fail")
	}

	// 100ms accrues one token at 10/s.
	now = now.Add(100 * time.Millisecond)
	if !rl.TryAcquire() {
		t.Error("expected TryAcquire to succeed after refill")
	}
}

func TestRateLimiter_WaitBlocksForToken(t *testing.T) {
	rl := NewRateLimiter(1, 100)

	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}

	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("second Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("expected Wait to block, but elapsed=%v", elapsed)
	}
}

func TestRateLimiter_WaitHonorsContext(t *testing.T) {
	rl := NewRateLimiter(1, 0.1)
	rl.TryAcquire() // drain; next token is 10s away

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx); err == nil {
		t.Fatal("expected Wait to fail when context expires")
	}
}

func TestAsterLimiters_Initialized(t *testing.T) {
	order := GetAsterOrderLimiter()
	account := GetAsterAccountLimiter()
	market := GetAsterMarketLimiter()

	if order == nil || account == nil || market == nil {
		t.Fatal("limiter singletons not initialized")
	}
	if order == account {
		t.Error("order and account limiters should be different instances")
	}
}
