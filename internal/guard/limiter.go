package guard

import (
	"sync"
	"time"
)

// Limiter is a per-user sliding window: at most Calls requests in any Window.
type Limiter struct {
	mu     sync.Mutex
	calls  int
	window time.Duration
	now    func() time.Time
	hits   map[string][]time.Time
}

// NewLimiter builds a limiter. A nil clock uses time.Now; calls <= 0 disables limiting.
func NewLimiter(calls int, window time.Duration, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{calls: calls, window: window, now: now, hits: make(map[string][]time.Time)}
}

// SetLimit changes the budget; recorded hits are kept.
func (l *Limiter) SetLimit(calls int, window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls, l.window = calls, window
}

// Allow records a request from userID and reports whether it fits the budget.
// Rejected requests are not recorded.
func (l *Limiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.calls <= 0 {
		return true
	}

	now := l.now()
	cutoff := now.Add(-l.window)
	recent := l.hits[userID][:0]
	for _, at := range l.hits[userID] {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}
	if len(recent) >= l.calls {
		l.hits[userID] = recent
		return false
	}
	l.hits[userID] = append(recent, now)
	return true
}

// Forget drops a user's history, e.g. when they leave.
func (l *Limiter) Forget(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hits, userID)
}
