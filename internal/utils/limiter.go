// Package utils provides utility functions used throughout the application.
package utils

import (
	"context"
	"sync"
	"time"
)

// LimitDecision is the outcome of one rate limit check.
type LimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter is an in-memory sliding-window rate limiter keyed by caller.
type RateLimiter struct {
	// requests maps keys to request timestamps inside the window
	requests map[string][]time.Time

	window time.Duration
	limit  int

	mu  sync.Mutex
	now func() time.Time
}

// NewRateLimiter creates a new rate limiter with the specified window and limit.
func NewRateLimiter(window time.Duration, limit int) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		window:   window,
		limit:    limit,
		now:      time.Now,
	}
}

// Allow records a request for key and reports whether it fits in the window.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.Take(key).Allowed
}

// Take records a request for key when allowed and returns the full decision.
func (rl *RateLimiter) Take(key string) LimitDecision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	valid := rl.prune(key, now)

	decision := LimitDecision{Limit: rl.limit}
	if len(valid) >= rl.limit {
		decision.ResetAt = valid[0].Add(rl.window)
		rl.requests[key] = valid
		return decision
	}

	valid = append(valid, now)
	rl.requests[key] = valid

	decision.Allowed = true
	decision.Remaining = rl.limit - len(valid)
	decision.ResetAt = valid[0].Add(rl.window)
	return decision
}

// prune drops timestamps outside the window. Callers must hold mu.
func (rl *RateLimiter) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	times := rl.requests[key]

	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}

// CleanupLoop periodically cleans up expired entries until ctx is done.
func (rl *RateLimiter) CleanupLoop(ctx context.Context, cleanupInterval time.Duration) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key := range rl.requests {
		if valid := rl.prune(key, now); len(valid) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = valid
		}
	}
}

// Check implements the request limiter contract used by the HTTP middleware.
func (rl *RateLimiter) Check(_ context.Context, key string) (LimitDecision, error) {
	return rl.Take(key), nil
}
