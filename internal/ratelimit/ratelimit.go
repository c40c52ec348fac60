// Package ratelimit protects request_publish_message_queue from a single
// session flooding the broker: a token-bucket limiter keyed by session,
// refilled once a minute has passed since the session's last refill.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter enforces a per-session publish budget using a token bucket.
type Limiter struct {
	mu             sync.Mutex
	tokens         map[string]int
	lastReset      map[string]time.Time
	maxPerMinute   int
}

// New builds a Limiter allowing maxPerMinute publishes per session key
// ("id::sub_id") per fixed window. A window starts at the first Allow for
// that key and ends one minute later; it is not a rolling window.
func New(maxPerMinute int) *Limiter {
	return &Limiter{
		tokens:       make(map[string]int),
		lastReset:    make(map[string]time.Time),
		maxPerMinute: maxPerMinute,
	}
}

// Allow reports whether sessionKey may publish now, consuming one token
// if so. A non-positive maxPerMinute disables limiting entirely.
func (l *Limiter) Allow(sessionKey string) bool {
	if l.maxPerMinute <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	lastReset, exists := l.lastReset[sessionKey]

	if !exists || now.Sub(lastReset) > time.Minute {
		l.tokens[sessionKey] = l.maxPerMinute
		l.lastReset[sessionKey] = now
	}

	if l.tokens[sessionKey] > 0 {
		l.tokens[sessionKey]--
		return true
	}

	return false
}

// Forget drops a session's bucket, called when its connection closes so
// the maps don't grow unbounded across the process lifetime.
func (l *Limiter) Forget(sessionKey string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.tokens, sessionKey)
	delete(l.lastReset, sessionKey)
}

// Remaining returns the tokens left for sessionKey in the current window,
// for diagnostics; it does not itself reset or consume anything.
func (l *Limiter) Remaining(sessionKey string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokens[sessionKey]
}
