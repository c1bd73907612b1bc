// Package ratelimit provides a sliding-window admission limiter for outbound
// registry calls. Unlike a token bucket it guarantees that no window of the
// configured duration ever admits more than the configured maximum.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter admits at most max requests per sliding window. WaitForSlot blocks
// until admission; latency degrades gracefully rather than failing.
type Limiter struct {
	max    int
	window time.Duration
	buffer time.Duration

	mu     sync.Mutex
	admits []time.Time
}

// New returns a Limiter admitting max requests per window. buffer is a small
// extra delay added when waiting for the oldest admission to leave the window,
// covering clock granularity.
func New(max int, window, buffer time.Duration) *Limiter {
	if max < 1 {
		max = 1
	}
	return &Limiter{max: max, window: window, buffer: buffer}
}

// WaitForSlot blocks until the caller may issue a request, then records the
// admission. It returns early only when ctx is done.
func (l *Limiter) WaitForSlot(ctx context.Context) error {
	for {
		wait, ok := l.tryAdmit()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAdmit drops admissions older than the window and either records a new
// admission or returns how long to wait before re-evaluating.
func (l *Limiter) tryAdmit() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.window)
	kept := 0
	for kept < len(l.admits) && !l.admits[kept].After(cutoff) {
		kept++
	}
	l.admits = l.admits[kept:]

	if len(l.admits) < l.max {
		l.admits = append(l.admits, now)
		return 0, true
	}

	wait := l.window - now.Sub(l.admits[0]) + l.buffer
	if wait <= 0 {
		wait = l.buffer
	}
	return wait, false
}
