package exchange

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_WrappedChain(t *testing.T) {
	base := NewError(KindAlreadyGone, "paper", "-2011", "unknown order")
	wrapped := fmt.Errorf("cancel failed: %w", base)

	if !IsAlreadyGone(wrapped) {
		t.Error("expected IsAlreadyGone through a wrapped chain")
	}
	if KindOf(wrapped) != KindAlreadyGone {
		t.Errorf("KindOf = %v, want KindAlreadyGone", KindOf(wrapped))
	}
}

func TestKindOf_PlainError(t *testing.T) {
	if KindOf(errors.New("dial tcp: timeout")) != KindOther {
		t.Error("plain errors must classify as Other")
	}
	if IsRateLimited(nil) {
		t.Error("nil must not classify as rate limited")
	}
}

func TestErrorString(t *testing.T) {
	e := NewError(KindRateLimited, "aster", "429", "too many requests")
	want := "aster: too many requests (RATE_LIMITED 429)"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}

func TestWrapError_Unwrap(t *testing.T) {
	underlying := errors.New("connection reset")
	e := WrapError(KindOther, "aster", underlying)
	if !errors.Is(e, underlying) {
		t.Error("WrapError must preserve the underlying error for errors.Is")
	}
}
