package retry

import (
	"testing"
	"time"
)

func TestDecide_CeilingSequence(t *testing.T) {
	tr := NewTracker(3, 10*time.Minute)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	wants := []struct {
		attempt     int
		shouldRetry bool
	}{
		{1, true},
		{2, true},
		{3, false},
	}

	for i, want := range wants {
		d := tr.Decide("ntf-1", base.Add(time.Duration(i)*time.Minute))
		if d.Attempt != want.attempt || d.ShouldRetry != want.shouldRetry {
			t.Errorf("call %d: Decide = %+v, want {%d %v}", i+1, d, want.attempt, want.shouldRetry)
		}
	}
}

func TestDecide_ResetWindow(t *testing.T) {
	tr := NewTracker(3, 10*time.Minute)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		tr.Decide("ntf-1", base.Add(time.Duration(i)*time.Minute))
	}

	// The window is measured from the streak's first attempt.
	d := tr.Decide("ntf-1", base.Add(10*time.Minute))
	if d.Attempt != 1 || !d.ShouldRetry {
		t.Errorf("after reset window: Decide = %+v, want {1 true}", d)
	}
}

func TestDecide_IndependentNotifications(t *testing.T) {
	tr := NewTracker(3, 10*time.Minute)
	now := time.Now()

	tr.Decide("ntf-1", now)
	tr.Decide("ntf-1", now)

	if d := tr.Decide("ntf-2", now); d.Attempt != 1 {
		t.Errorf("ntf-2 first attempt = %d, want 1", d.Attempt)
	}
}

func TestClear(t *testing.T) {
	tr := NewTracker(3, 10*time.Minute)
	now := time.Now()

	tr.Decide("ntf-1", now)
	tr.Decide("ntf-1", now)
	tr.Clear("ntf-1")

	if d := tr.Decide("ntf-1", now); d.Attempt != 1 {
		t.Errorf("after Clear: attempt = %d, want 1", d.Attempt)
	}
	if tr.Len() != 1 {
		t.Errorf("Len = %d, want 1", tr.Len())
	}
}

func TestNewTracker_Defaults(t *testing.T) {
	tr := NewTracker(0, 0)
	if tr.ceiling != DefaultCeiling {
		t.Errorf("ceiling = %d, want %d", tr.ceiling, DefaultCeiling)
	}
	if tr.resetWindow != DefaultResetWindow {
		t.Errorf("resetWindow = %s, want %s", tr.resetWindow, DefaultResetWindow)
	}
}
