// Package limits guards the warehouse from request floods: a per-session
// sliding-window rate limiter up front and a non-blocking admission gate
// around statement execution.
package limits

import (
	"sync"
	"time"

	"github.com/sovakpeter/lakegate/go/protocol"
)

// SessionRateLimiter admits at most maxRequests per session within a
// sliding window. Sessions are identified by an opaque id; requests with
// no session id are always admitted.
type SessionRateLimiter struct {
	maxRequests int
	window      time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionWindow
}

type sessionWindow struct {
	// Admission timestamps in FIFO order, trimmed to the window on use.
	stamps   []time.Time
	lastSeen time.Time
}

// NewSessionRateLimiter returns a limiter admitting maxRequests per window.
func NewSessionRateLimiter(maxRequests int, window time.Duration) *SessionRateLimiter {
	return &SessionRateLimiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		sessions:    map[string]*sessionWindow{},
	}
}

// SetClock replaces the time source. Test use only.
func (l *SessionRateLimiter) SetClock(now func() time.Time) { l.now = now }

// Check admits or rejects one request for the session. Rejection returns a
// THROTTLE error carrying a retry-after estimate.
func (l *SessionRateLimiter) Check(sessionID string) error {
	if sessionID == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.sessions[sessionID]
	if w == nil {
		w = &sessionWindow{}
		l.sessions[sessionID] = w
	}
	w.lastSeen = now

	cutoff := now.Add(-l.window)
	trimmed := w.stamps[:0]
	for _, t := range w.stamps {
		if t.After(cutoff) {
			trimmed = append(trimmed, t)
		}
	}
	w.stamps = trimmed

	if len(w.stamps) >= l.maxRequests {
		retryAfter := l.window - now.Sub(w.stamps[0])
		if retryAfter < 0 {
			retryAfter = 0
		}
		return protocol.ThrottleError(retryAfter.Seconds())
	}

	w.stamps = append(w.stamps, now)
	return nil
}

// CleanupStale evicts sessions idle for longer than maxIdle and returns
// how many were removed.
func (l *SessionRateLimiter) CleanupStale(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxIdle)
	removed := 0
	for id, w := range l.sessions {
		if w.lastSeen.Before(cutoff) {
			delete(l.sessions, id)
			removed++
		}
	}
	return removed
}

// Sessions reports how many sessions are currently tracked.
func (l *SessionRateLimiter) Sessions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}
