package browser

import (
	"context"
	"time"

	"igreels/pkg/models"
)

// WaitKind is the readiness condition a navigation waits for.
type WaitKind int

const (
	// WaitDOM waits until the document body is ready.
	WaitDOM WaitKind = iota
	// WaitNetworkIdle waits for the page lifecycle networkIdle event.
	WaitNetworkIdle
	// WaitElement waits until Selector is visible.
	WaitElement
)

func (k WaitKind) String() string {
	switch k {
	case WaitNetworkIdle:
		return "network-idle"
	case WaitElement:
		return "element"
	default:
		return "dom-loaded"
	}
}

// WaitCondition describes when a navigation counts as complete. A zero
// Timeout uses the controller's default navigation timeout.
type WaitCondition struct {
	Kind     WaitKind
	Selector string
	Timeout  time.Duration
}

// WaitDOMLoaded waits for the DOM.
func WaitDOMLoaded() WaitCondition { return WaitCondition{Kind: WaitDOM} }

// WaitIdle waits for network idle.
func WaitIdle() WaitCondition { return WaitCondition{Kind: WaitNetworkIdle} }

// WaitFor waits for a CSS selector to become visible.
func WaitFor(selector string) WaitCondition {
	return WaitCondition{Kind: WaitElement, Selector: selector}
}

// WithTimeout overrides the navigation timeout.
func (w WaitCondition) WithTimeout(d time.Duration) WaitCondition {
	w.Timeout = d
	return w
}

// Query selects how a Target selector is interpreted.
type Query int

const (
	ByCSS Query = iota
	ByXPath
)

// Target is an element locator.
type Target struct {
	Selector string
	By       Query
}

// CSS returns a CSS target.
func CSS(selector string) Target { return Target{Selector: selector, By: ByCSS} }

// XPath returns an XPath target.
func XPath(selector string) Target { return Target{Selector: selector, By: ByXPath} }

// Controller drives a single browser tab. Every blocking call takes a
// context and is bounded by its own timeout.
type Controller interface {
	// Navigate loads url and waits for the condition. Timeouts are
	// reported as navigation_timeout errors.
	Navigate(ctx context.Context, url string, wait WaitCondition) error
	// CurrentURL returns the tab's location.
	CurrentURL(ctx context.Context) (string, error)

	// Cookies reads the jar for the target domain.
	Cookies(ctx context.Context) ([]models.SessionCookie, error)
	// SetCookies writes cookies into the jar.
	SetCookies(ctx context.Context, cookies []models.SessionCookie) error
	// ClearCookies empties the jar.
	ClearCookies(ctx context.Context) error

	// Exists reports whether a CSS selector matches right now.
	Exists(ctx context.Context, selector string) (bool, error)
	// Text returns the visible text of the page.
	Text(ctx context.Context) (string, error)
	// HTML returns the serialised document.
	HTML(ctx context.Context) (string, error)
	// Hrefs returns the href attribute of every match of a CSS selector.
	Hrefs(ctx context.Context, selector string) ([]string, error)

	// Type clears a field and types text one character at a time.
	Type(ctx context.Context, selector, text string) error
	// Click clicks the target if it becomes visible within timeout and
	// reports whether it was found.
	Click(ctx context.Context, target Target, timeout time.Duration) (bool, error)
	// ScrollToBottom scrolls the window and returns the new page height.
	ScrollToBottom(ctx context.Context) (int64, error)
	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	// DismissKnownPopups runs the dismiss attempts in order and returns
	// how many popups were closed. Missing popups are not errors.
	DismissKnownPopups(ctx context.Context) int

	// Close releases the browser process. It is safe to call twice.
	Close() error
}
