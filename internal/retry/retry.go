// Package retry tracks no-response delivery attempts per notification and
// decides when to stop retrying.
package retry

import (
	"sync"
	"time"
)

// Default retry policy values.
const (
	DefaultCeiling     = 3
	DefaultResetWindow = 10 * time.Minute
)

// Decision is the outcome of one retry check. Attempt is the position within
// the current streak; ShouldRetry is false at or beyond the ceiling, at which
// point the caller takes the single fallback path.
type Decision struct {
	Attempt     int
	ShouldRetry bool
}

type streak struct {
	attempt int
	firstAt time.Time
	lastAt  time.Time
}

// Tracker counts no-response attempts per notification id. A streak resets
// once the reset window has elapsed since the streak's first attempt, or when
// the caller clears it after obtaining a reply. Safe for concurrent use.
type Tracker struct {
	mu          sync.Mutex
	streaks     map[string]*streak
	ceiling     int
	resetWindow time.Duration
}

// NewTracker creates a Tracker. Non-positive parameters fall back to the
// defaults.
func NewTracker(ceiling int, resetWindow time.Duration) *Tracker {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	if resetWindow <= 0 {
		resetWindow = DefaultResetWindow
	}
	return &Tracker{
		streaks:     make(map[string]*streak),
		ceiling:     ceiling,
		resetWindow: resetWindow,
	}
}

// Decide records one no-response attempt for notificationID at now and
// returns the attempt number plus whether another retry is allowed. Exceeding
// the ceiling is not an error; ShouldRetry simply stays false.
func (t *Tracker) Decide(notificationID string, now time.Time) Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.streaks[notificationID]
	if !ok || now.Sub(s.firstAt) >= t.resetWindow {
		s = &streak{attempt: 1, firstAt: now, lastAt: now}
		t.streaks[notificationID] = s
		return Decision{Attempt: 1, ShouldRetry: 1 < t.ceiling}
	}

	s.attempt++
	s.lastAt = now
	return Decision{Attempt: s.attempt, ShouldRetry: s.attempt < t.ceiling}
}

// Clear removes the streak for notificationID, typically after a reply was
// obtained or the notification reached its terminal outcome.
func (t *Tracker) Clear(notificationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.streaks, notificationID)
}

// Len returns the number of active streaks, for metrics.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.streaks)
}
