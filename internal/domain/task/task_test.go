package task

import (
	"testing"
	"time"
)

func TestStatusIsTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusFailed, StatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusProcessing} {
		if s.IsTerminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusProcessing, StatusPending, false},
		{StatusCompleted, StatusFailed, false},
		{StatusCancelled, StatusProcessing, false},
		{StatusFailed, StatusCompleted, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestClampProgress(t *testing.T) {
	if got := ClampProgress(-5); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := ClampProgress(150); got != 100 {
		t.Errorf("expected 100, got %d", got)
	}
	if got := ClampProgress(42); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

func TestEstimateCompletion(t *testing.T) {
	start := time.Now().Add(-time.Minute)

	// 50% done after one minute — ETA one minute out.
	eta := EstimateCompletion(start, 50, time.Now())
	if eta == nil {
		t.Fatal("expected an estimate at 50% progress")
	}
	remaining := time.Until(*eta)
	if remaining < 50*time.Second || remaining > 70*time.Second {
		t.Errorf("expected ~1m remaining, got %v", remaining)
	}

	// Too little progress to extrapolate.
	if eta := EstimateCompletion(start, 2, time.Now()); eta != nil {
		t.Errorf("expected nil estimate at 2%%, got %v", eta)
	}
	if eta := EstimateCompletion(start, 100, time.Now()); eta != nil {
		t.Errorf("expected nil estimate at 100%%, got %v", eta)
	}
}
