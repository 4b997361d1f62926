package infra

import (
	"log/slog"
	"sync"
	"time"
)

type breakerState uint8

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerProbing
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "CLOSED"
	case breakerOpen:
		return "OPEN"
	default:
		return "PROBING"
	}
}

// Breaker trips after consecutive failures and rejects calls for a
// cooldown period, then lets probe calls through until enough succeed.
// Safe for concurrent use.
type Breaker struct {
	name string

	mu       sync.Mutex
	state    breakerState
	fails    int
	probes   int
	openedAt time.Time
	now      func() time.Time

	maxFails  int
	probeNeed int
	cooldown  time.Duration
}

// NewBreaker creates a breaker with the default policy: trip after 5
// consecutive failures, cool down 30s, close after 2 probe successes.
func NewBreaker(name string) *Breaker {
	return &Breaker{
		name:      name,
		now:       time.Now,
		maxFails:  5,
		probeNeed: 2,
		cooldown:  30 * time.Second,
	}
}

// SetClock replaces the time source, for tests.
func (b *Breaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Allow reports whether a call may proceed. While open, the first call
// after the cooldown flips the breaker into probing.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed, breakerProbing:
		return true
	default:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = breakerProbing
		b.probes = 0
		slog.Info("BREAKER_PROBING", slog.String("name", b.name))
		return true
	}
}

// Record feeds one call outcome into the breaker.
func (b *Breaker) Record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ok {
		switch b.state {
		case breakerClosed:
			b.fails = 0
		case breakerProbing:
			b.probes++
			if b.probes >= b.probeNeed {
				b.state = breakerClosed
				b.fails = 0
				slog.Info("BREAKER_CLOSED", slog.String("name", b.name))
			}
		}
		return
	}

	switch b.state {
	case breakerClosed:
		b.fails++
		if b.fails >= b.maxFails {
			b.trip()
		}
	case breakerProbing:
		b.trip()
	case breakerOpen:
		b.openedAt = b.now()
	}
}

// trip opens the breaker; callers hold b.mu.
func (b *Breaker) trip() {
	b.state = breakerOpen
	b.openedAt = b.now()
	b.probes = 0
	slog.Warn("BREAKER_OPEN", slog.String("name", b.name), slog.Int("failures", b.fails))
}

// State returns the state name, for logs and status endpoints.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}
