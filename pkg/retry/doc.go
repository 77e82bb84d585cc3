// Package retry provides bounded retry combinators with backoff.
//
// Every loop in the engine that may repeat (page navigation, two-factor
// submission) goes through Do with an explicit attempt budget:
//
//	err := retry.Do(ctx, func(attempt int) error {
//		return ctrl.Navigate(ctx, url, browser.WaitDOMLoaded())
//	}, retry.Navigation(3, time.Second, log))
//
// By default only errors classified as navigation timeouts are retried.
// When the budget runs out Do returns an *ExhaustedError wrapping the
// last failure, so the original classification survives errors.As.
package retry
