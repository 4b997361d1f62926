package infra

import (
	"testing"
	"time"
)

func TestReconnectDelay_DoublesUpToCap(t *testing.T) {
	cases := []struct {
		attempt int
		base    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, 1 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{20, 30 * time.Second},
	}
	for _, c := range cases {
		got := ReconnectDelay(c.attempt)
		if got < c.base || got > c.base+c.base/5 {
			t.Errorf("ReconnectDelay(%d) = %v, want in [%v, %v]", c.attempt, got, c.base, c.base+c.base/5)
		}
	}
}

func TestReconnectDelay_NegativeAttempt(t *testing.T) {
	got := ReconnectDelay(-3)
	if got < 500*time.Millisecond || got > 600*time.Millisecond {
		t.Errorf("ReconnectDelay(-3) = %v, want base delay", got)
	}
}
