package ratelimit

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	errs "igreels/pkg/errors"
)

// Policy decides what the run does once rate limiting is suspected.
type Policy string

const (
	PolicyWarn  Policy = "warn"
	PolicyPause Policy = "pause"
	PolicyStop  Policy = "stop"
)

// ParsePolicy maps a config value to a Policy, defaulting to warn.
func ParsePolicy(s string) Policy {
	switch Policy(strings.ToLower(s)) {
	case PolicyPause:
		return PolicyPause
	case PolicyStop:
		return PolicyStop
	default:
		return PolicyWarn
	}
}

// Detector counts navigation failures in a sliding window. Reaching the
// threshold raises a RateLimitSuspected error once; the window is then
// cleared so a fresh burst is needed to raise it again.
type Detector struct {
	threshold int
	window    time.Duration
	failures  *SlidingWindow
	mu        sync.Mutex
	raised    int
}

// NewDetector creates a detector
func NewDetector(threshold int, window time.Duration) *Detector {
	if threshold <= 0 {
		threshold = 1
	}
	return &Detector{
		threshold: threshold,
		window:    window,
		failures:  NewSlidingWindow(threshold, window),
	}
}

// RecordFailure notes a navigation failure. It returns a classified
// error when the failure count inside the window reaches the threshold.
func (d *Detector) RecordFailure() error {
	n := d.failures.Record()
	if n < d.threshold {
		return nil
	}
	d.failures.Reset()

	d.mu.Lock()
	d.raised++
	d.mu.Unlock()

	return errs.Newf(errs.ErrorTypeRateLimitSuspected,
		"%d navigation failures within %s", n, d.window)
}

// Failures returns the failures currently inside the window
func (d *Detector) Failures() int {
	return d.failures.Count()
}

// Raised returns how many times suspicion was raised
func (d *Detector) Raised() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.raised
}

// Window returns the observation window
func (d *Detector) Window() time.Duration {
	return d.window
}

// Pacer sleeps a base delay with symmetric jitter between navigations.
type Pacer struct {
	Base   time.Duration
	Jitter float64
	rnd    func() float64
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer; jitter is a fraction of base in [0,1].
func NewPacer(base time.Duration, jitter float64) *Pacer {
	return &Pacer{Base: base, Jitter: jitter, rnd: rand.Float64, sleep: sleep}
}

// Next returns the next delay
func (p *Pacer) Next() time.Duration {
	if p.Base <= 0 {
		return 0
	}
	if p.Jitter <= 0 {
		return p.Base
	}
	spread := float64(p.Base) * p.Jitter
	d := float64(p.Base) + (p.rnd()*2-1)*spread
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Wait sleeps for the next delay or until ctx ends
func (p *Pacer) Wait(ctx context.Context) error {
	d := p.Next()
	if err := p.sleep(ctx, d); err != nil {
		return fmt.Errorf("pacing interrupted: %w", err)
	}
	return nil
}

// Between returns a uniformly random duration in [lo, hi].
func Between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)+1))
}
