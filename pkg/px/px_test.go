package px

import "testing"

func TestDecimalsOf(t *testing.T) {
	cases := []struct {
		quantum float64
		want    int
	}{
		{1, 0},
		{0.1, 1},
		{0.01, 2},
		{0.00001, 5},
		{0, 0},
		{-0.1, 0},
	}
	for _, c := range cases {
		if got := DecimalsOf(c.quantum); got != c.want {
			t.Errorf("DecimalsOf(%v) = %d, want %d", c.quantum, got, c.want)
		}
	}
}

func TestFloorToStep(t *testing.T) {
	if got := FloorToStep(0.129, 0.01); got != 0.12 {
		t.Errorf("FloorToStep(0.129, 0.01) = %v, want 0.12", got)
	}
	if got := FloorToStep(5, 0.001); got != 5 {
		t.Errorf("FloorToStep(5, 0.001) = %v, want 5", got)
	}
	// Flooring below one step yields zero; the caller decides the fallback.
	if got := FloorToStep(0.0004, 0.001); got != 0 {
		t.Errorf("FloorToStep(0.0004, 0.001) = %v, want 0", got)
	}
	// Zero step is a no-op.
	if got := FloorToStep(1.23456, 0); got != 1.23456 {
		t.Errorf("FloorToStep with zero step = %v, want passthrough", got)
	}
}

func TestFloorToStep_NoBinaryDrift(t *testing.T) {
	// 0.1 is not exactly representable; decimal math must still land on
	// the grid cell instead of one step below it.
	if got := FloorToStep(0.3, 0.1); got != 0.3 {
		t.Errorf("FloorToStep(0.3, 0.1) = %v, want 0.3", got)
	}
	if got := FloorToTick(104.88088, 0.00001); got != 104.88088 {
		t.Errorf("FloorToTick(104.88088, 0.00001) = %v, want 104.88088", got)
	}
}

func TestFormat(t *testing.T) {
	if got := Format(104.880884817, 0.00001); got != "104.88088" {
		t.Errorf("Format = %q, want 104.88088", got)
	}
	if got := Format(100, 0.00001); got != "100.00000" {
		t.Errorf("Format = %q, want 100.00000", got)
	}
	if got := Format(42, 1); got != "42" {
		t.Errorf("Format(42, 1) = %q, want 42", got)
	}
}

func TestEqual(t *testing.T) {
	if !Equal(100.000004, 100.000001, 0.00001) {
		t.Error("values in the same tick cell should compare equal")
	}
	if Equal(100.00002, 100.00004, 0.00001) {
		t.Error("values in different tick cells should not compare equal")
	}
}
