package browser

import (
	"context"
	"time"
)

// DismissAttempt is one way of closing a known popup.
type DismissAttempt struct {
	Name   string
	Target Target
}

// DefaultDismissAttempts are tried in order after login and page loads.
var DefaultDismissAttempts = []DismissAttempt{
	{Name: "cookie consent allow", Target: XPath(`//button[contains(., 'Allow all cookies')]`)},
	{Name: "cookie consent decline", Target: XPath(`//button[contains(., 'Decline optional cookies')]`)},
	{Name: "save login info", Target: XPath(`//button[contains(text(), 'Not Now')]`)},
	{Name: "dialog not now", Target: XPath(`//div[@role='dialog']//button[contains(., 'Not Now')]`)},
	{Name: "save login button", Target: CSS(`button._a9--._a9_1`)},
	{Name: "notifications", Target: XPath(`//div[@role='dialog']//button[contains(., 'Not Now') or contains(., 'Turn On')][1]`)},
}

type clickFunc func(ctx context.Context, target Target, timeout time.Duration) (bool, error)

// dismissAll runs every attempt in order. Failures and absences are
// swallowed; only a cancelled context stops the sequence.
func dismissAll(ctx context.Context, click clickFunc, attempts []DismissAttempt, timeout time.Duration) (dismissed int, names []string) {
	for _, a := range attempts {
		if ctx.Err() != nil {
			return dismissed, names
		}
		ok, err := click(ctx, a.Target, timeout)
		if err != nil || !ok {
			continue
		}
		dismissed++
		names = append(names, a.Name)
	}
	return dismissed, names
}
