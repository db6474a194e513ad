package graph

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRetryAfter applies when Graph throttles without a usable Retry-After.
const DefaultRetryAfter = 60 * time.Second

// RateLimiter paces outbound Graph requests with a token bucket and holds
// further requests back after Graph answers 429.
type RateLimiter struct {
	limiter *rate.Limiter
	now     func() time.Time

	mu      sync.Mutex
	retryAt time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second with the
// given burst. A non-positive rps disables pacing but still honours
// Retry-After.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{now: time.Now}
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		rl.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return rl
}

// Wait blocks until a request may be sent or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return nil
	}

	if wait := rl.throttled(); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if rl.limiter == nil {
		return ctx.Err()
	}
	return rl.limiter.Wait(ctx)
}

// throttled returns how long a 429 still holds requests back.
func (rl *RateLimiter) throttled() time.Duration {
	rl.mu.Lock()
	retryAt := rl.retryAt
	rl.mu.Unlock()

	return max(retryAt.Sub(rl.now()), 0)
}

// RecordThrottle defers subsequent requests by d, or DefaultRetryAfter when
// d is not positive. An earlier deadline never shortens a later one.
func (rl *RateLimiter) RecordThrottle(d time.Duration) {
	if rl == nil {
		return
	}
	if d <= 0 {
		d = DefaultRetryAfter
	}

	next := rl.now().Add(d)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if next.After(rl.retryAt) {
		rl.retryAt = next
	}
}

// parseRetryAfter reads a Retry-After header given either in seconds or as
// an HTTP date. It returns zero when the header is absent or unusable.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
