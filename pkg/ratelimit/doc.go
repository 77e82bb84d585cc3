// Package ratelimit paces browser navigations.
//
// NavigationBudget is a token bucket (golang.org/x/time/rate) capping
// page loads per minute. Pacer inserts the jittered delays between post
// and account navigations. Detector counts navigation failures in a
// SlidingWindow and raises a RateLimitSuspected error when they bunch
// up, leaving the choice to continue, pause or stop to the caller.
package ratelimit
