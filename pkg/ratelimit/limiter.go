package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx ends
	Wait(ctx context.Context) error
	// Reset resets the rate limiter state
	Reset()
}

// NavigationBudget caps page loads per minute with a token bucket.
type NavigationBudget struct {
	perMinute int
	burst     int
	mu        sync.Mutex
	limiter   *rate.Limiter
}

// NewNavigationBudget allows perMinute navigations with the given burst.
// A non-positive perMinute disables limiting.
func NewNavigationBudget(perMinute, burst int) *NavigationBudget {
	if burst <= 0 {
		burst = 1
	}
	b := &NavigationBudget{perMinute: perMinute, burst: burst}
	b.Reset()
	return b
}

func (b *NavigationBudget) current() *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limiter
}

// Allow checks if a navigation can proceed now
func (b *NavigationBudget) Allow() bool {
	return b.current().Allow()
}

// Wait blocks until a navigation is allowed
func (b *NavigationBudget) Wait(ctx context.Context) error {
	return b.current().Wait(ctx)
}

// Reset refills the bucket
func (b *NavigationBudget) Reset() {
	limit := rate.Inf
	if b.perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(b.perMinute))
	}
	b.mu.Lock()
	b.limiter = rate.NewLimiter(limit, b.burst)
	b.mu.Unlock()
}

// SlidingWindow implements a sliding window rate limiter
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

// Allow checks if a request can proceed
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}

	return false
}

// Record notes an event regardless of capacity and returns how many
// events are inside the window.
func (sw *SlidingWindow) Record() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.cleanOldRequests(now)
	sw.requests = append(sw.requests, now)
	return len(sw.requests)
}

// Count returns the number of events inside the window
func (sw *SlidingWindow) Count() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.cleanOldRequests(sw.now())
	return len(sw.requests)
}

// Wait blocks until a request is allowed
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for !sw.Allow() {
		sw.mu.Lock()
		wait := 100 * time.Millisecond
		if len(sw.requests) > 0 {
			wait = sw.windowSize - sw.now().Sub(sw.requests[0])
		}
		sw.mu.Unlock()

		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// cleanOldRequests removes requests outside the sliding window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && sw.requests[i].Before(cutoff) {
		i++
	}

	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
