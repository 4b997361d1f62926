package infra

import (
	"testing"
	"time"
)

func newTestBreaker() (*Breaker, *time.Time) {
	now := time.Unix(1_700_000_000, 0)
	b := NewBreaker("test")
	b.SetClock(func() time.Time { return now })
	return b, &now
}

func TestBreaker_ClosedAllows(t *testing.T) {
	b, _ := newTestBreaker()
	if !b.Allow() {
		t.Fatal("closed breaker rejected a call")
	}
	if b.State() != "CLOSED" {
		t.Errorf("state = %s, want CLOSED", b.State())
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker()
	for i := 0; i < 5; i++ {
		b.Record(false)
	}
	if b.State() != "OPEN" {
		t.Fatalf("state after 5 failures = %s, want OPEN", b.State())
	}
	if b.Allow() {
		t.Error("open breaker allowed a call inside cooldown")
	}
}

func TestBreaker_SuccessResetsFailureStreak(t *testing.T) {
	b, _ := newTestBreaker()
	for i := 0; i < 4; i++ {
		b.Record(false)
	}
	b.Record(true)
	b.Record(false)
	if b.State() != "CLOSED" {
		t.Errorf("state = %s, want CLOSED after streak reset", b.State())
	}
}

func TestBreaker_ProbesAfterCooldownAndCloses(t *testing.T) {
	b, now := newTestBreaker()
	for i := 0; i < 5; i++ {
		b.Record(false)
	}

	*now = now.Add(31 * time.Second)
	if !b.Allow() {
		t.Fatal("breaker did not probe after cooldown")
	}
	if b.State() != "PROBING" {
		t.Fatalf("state = %s, want PROBING", b.State())
	}

	b.Record(true)
	b.Record(true)
	if b.State() != "CLOSED" {
		t.Errorf("state after probe successes = %s, want CLOSED", b.State())
	}
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	b, now := newTestBreaker()
	for i := 0; i < 5; i++ {
		b.Record(false)
	}

	*now = now.Add(31 * time.Second)
	b.Allow()
	b.Record(false)

	if b.State() != "OPEN" {
		t.Fatalf("state after probe failure = %s, want OPEN", b.State())
	}
	if b.Allow() {
		t.Error("reopened breaker allowed a call before a new cooldown")
	}
}
