// Package ratelimit paces outbound API calls with a token bucket and an
// optional server-requested cool-down.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultCooldown = 60 * time.Second

// Limiter combines a token bucket with a Retry-After style backoff window.
// A nil *Limiter never blocks.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
	now     func() time.Time
}

// New returns a limiter allowing perSecond sustained requests with the given
// burst. perSecond <= 0 disables pacing but keeps the cool-down behaviour.
func New(perSecond float64, burst int) *Limiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(limit, burst), now: time.Now}
}

// PerMinute is a convenience for services documented in requests per minute.
func PerMinute(perMinute float64, burst int) *Limiter {
	return New(perMinute/60, burst)
}

// Wait blocks until a request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if delay := retryAt.Sub(l.now()); delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return l.limiter.Wait(ctx)
}

// Cooldown holds back every caller for d, or a minute when d is not positive.
// Call it after the remote side answered 429.
func (l *Limiter) Cooldown(d time.Duration) {
	if l == nil {
		return
	}
	if d <= 0 {
		d = defaultCooldown
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if until := l.now().Add(d); until.After(l.retryAt) {
		l.retryAt = until
	}
}

// CoolingDown reports whether a cool-down window is active.
func (l *Limiter) CoolingDown() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now().Before(l.retryAt)
}
