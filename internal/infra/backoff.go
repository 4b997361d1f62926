package infra

import (
	"math/rand"
	"time"
)

const (
	reconnectBase = 500 * time.Millisecond
	reconnectCap  = 30 * time.Second
)

// ReconnectDelay returns the wait before reconnect attempt n (0-based):
// the base delay doubles per attempt up to the cap, plus up to 20% random
// jitter so workers that dropped together do not redial together.
func ReconnectDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := reconnectCap
	// 2^6 * 500ms already exceeds the cap.
	if attempt <= 6 {
		delay = reconnectBase << uint(attempt)
		if delay > reconnectCap {
			delay = reconnectCap
		}
	}

	jitter := time.Duration(rand.Int63n(int64(delay)/5 + 1))
	return delay + jitter
}
