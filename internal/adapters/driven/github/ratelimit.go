package github

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

const (
	// GitHubRateLimit is the authenticated rate limit (5000/hour).
	GitHubRateLimit = 5000

	// ProactiveRate is the proactive throttle rate (~1.2 req/sec = 4320/hr).
	ProactiveRate = 1.2

	// MinBuffer is the minimum remaining requests before waiting for reset.
	MinBuffer = 100

	// HeaderRateLimit is the rate limit header.
	HeaderRateLimit = "X-RateLimit-Limit"

	// HeaderRateRemaining is the remaining requests header.
	HeaderRateRemaining = "X-RateLimit-Remaining"

	// HeaderRateReset is the reset timestamp header (Unix seconds).
	HeaderRateReset = "X-RateLimit-Reset"

	// HeaderRetryAfter is the retry-after header (seconds).
	HeaderRetryAfter = "Retry-After"
)

// RateLimiter tracks GitHub's quota and throttles requests.
type RateLimiter struct {
	mu        sync.Mutex
	remaining int
	limit     int
	resetTime time.Time
	bucket    *rate.Limiter
	minBuffer int
}

// NewRateLimiter creates a rate limiter with proactive throttling.
func NewRateLimiter() *RateLimiter {
	return newRateLimiter(rate.Limit(ProactiveRate))
}

func newRateLimiter(r rate.Limit) *RateLimiter {
	return &RateLimiter{
		remaining: GitHubRateLimit, // Assume full quota initially
		limit:     GitHubRateLimit,
		bucket:    rate.NewLimiter(r, 1),
		minBuffer: MinBuffer,
	}
}

// Wait blocks until it's safe to make a request.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.bucket.Wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	remaining := r.remaining
	resetTime := r.resetTime
	r.mu.Unlock()

	if remaining < r.minBuffer && time.Now().Before(resetTime) {
		timer := time.NewTimer(time.Until(resetTime))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// UpdateFromResponse updates quota state from response headers.
func (r *RateLimiter) UpdateFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if remaining := resp.Header.Get(HeaderRateRemaining); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			r.remaining = val
		}
	}
	if limit := resp.Header.Get(HeaderRateLimit); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			r.limit = val
		}
	}
	if reset := resp.Header.Get(HeaderRateReset); reset != "" {
		if val, err := strconv.ParseInt(reset, 10, 64); err == nil {
			r.resetTime = time.Unix(val, 0)
		}
	}
}

// Exceeded builds the error for an exhausted quota. A Retry-After header
// on resp overrides the tracked reset time.
func (r *RateLimiter) Exceeded(resp *http.Response) *domain.RateLimitError {
	r.UpdateFromResponse(resp)

	r.mu.Lock()
	rlErr := &domain.RateLimitError{ResetAt: r.resetTime, Remaining: r.remaining, Limit: r.limit}
	r.mu.Unlock()

	if resp != nil {
		if retryAfter := resp.Header.Get(HeaderRetryAfter); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil {
				rlErr.ResetAt = time.Now().Add(time.Duration(seconds) * time.Second)
			}
		}
	}
	return rlErr
}

// Remaining returns the current remaining requests.
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining
}
