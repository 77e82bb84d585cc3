package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	errs "igreels/pkg/errors"
	"igreels/pkg/logger"
	"igreels/pkg/models"
)

// Chrome is a Controller backed by a chromedp-driven Chrome process.
type Chrome struct {
	opts   Options
	log    logger.Logger
	tab    context.Context
	cancel []context.CancelFunc
	once   sync.Once
}

// Launch starts a browser with the given options. A process that does
// not come up is reported as a launch error.
func Launch(ctx context.Context, opts Options, log logger.Logger) (*Chrome, error) {
	opts = opts.withDefaults()
	if log == nil {
		log = logger.NewNopLogger()
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions(opts)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			log.Debug(fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			log.Warn(fmt.Sprintf(format, args...))
		}),
	)

	c := &Chrome{
		opts:   opts,
		log:    log.WithField("component", "browser"),
		tab:    tabCtx,
		cancel: []context.CancelFunc{tabCancel, allocCancel},
	}

	// The first Run allocates the process and binds it to the tab
	// context, so it must not carry a timeout of its own.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()
	select {
	case err := <-started:
		if err != nil {
			c.Close()
			return nil, errs.Wrap(errs.ErrorTypeLaunch, "browser failed to start", err)
		}
	case <-time.After(opts.LaunchTimeout):
		c.Close()
		return nil, errs.Newf(errs.ErrorTypeLaunch, "browser did not start within %s", opts.LaunchTimeout)
	case <-ctx.Done():
		c.Close()
		return nil, ctx.Err()
	}

	if err := c.run(ctx, opts.LaunchTimeout, stealthTasks(opts)); err != nil {
		c.Close()
		return nil, errs.Wrap(errs.ErrorTypeLaunch, "browser failed to start", err)
	}

	fields := map[string]interface{}{
		"headless": opts.Headless,
		"viewport": fmt.Sprintf("%dx%d", opts.ViewportWidth, opts.ViewportHeight),
	}
	if opts.Proxy != nil {
		fields["proxy"] = opts.Proxy.HostPort()
	}
	c.log.InfoWithFields("Browser launched", fields)

	return c, nil
}

// run executes actions on the tab, bounded by timeout and by ctx.
func (c *Chrome) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(c.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url and waits for the condition.
func (c *Chrome) Navigate(ctx context.Context, url string, wait WaitCondition) error {
	timeout := wait.Timeout
	if timeout <= 0 {
		timeout = c.opts.NavigationTimeout
	}

	start := time.Now()
	var err error
	switch wait.Kind {
	case WaitNetworkIdle:
		err = c.navigateIdle(ctx, url, timeout)
	case WaitElement:
		err = c.run(ctx, timeout,
			chromedp.Navigate(url),
			chromedp.WaitVisible(wait.Selector, chromedp.ByQuery),
		)
	default:
		err = c.run(ctx, timeout,
			chromedp.Navigate(url),
			chromedp.WaitReady("body", chromedp.ByQuery),
		)
	}

	err = classifyNavigation(ctx, url, wait, err)
	logger.LogNavigation(c.log, url, time.Since(start), err)
	return err
}

func (c *Chrome) navigateIdle(ctx context.Context, url string, timeout time.Duration) error {
	runCtx, cancel := context.WithTimeout(c.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var (
		mu     sync.Mutex
		idle   []lifecycleEvent
		notify = make(chan struct{}, 1)
	)
	listenCtx, stopListening := context.WithCancel(runCtx)
	defer stopListening()
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		e, ok := ev.(*page.EventLifecycleEvent)
		if !ok || e.Name != "networkIdle" {
			return
		}
		mu.Lock()
		idle = append(idle, lifecycleEvent{frame: e.FrameID, loader: e.LoaderID})
		mu.Unlock()
		select {
		case notify <- struct{}{}:
		default:
		}
	})

	var frameID cdp.FrameID
	var loaderID cdp.LoaderID
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var (
			errorText string
			err       error
		)
		frameID, loaderID, errorText, _, err = page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("page load error %s", errorText)
		}
		return nil
	}))
	if err != nil {
		return err
	}

	for {
		mu.Lock()
		done := idleFor(idle, frameID, loaderID)
		mu.Unlock()
		if done {
			return nil
		}
		select {
		case <-notify:
		case <-runCtx.Done():
			return runCtx.Err()
		}
	}
}

type lifecycleEvent struct {
	frame  cdp.FrameID
	loader cdp.LoaderID
}

// idleFor reports whether the main frame went idle for the given
// navigation. Iframes and earlier loads do not count; a same-document
// navigation has no loader and matches on the frame alone.
func idleFor(events []lifecycleEvent, frame cdp.FrameID, loader cdp.LoaderID) bool {
	for _, e := range events {
		if e.frame != frame {
			continue
		}
		if loader == "" || e.loader == loader {
			return true
		}
	}
	return false
}

func classifyNavigation(ctx context.Context, url string, wait WaitCondition, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.ErrorTypeNavigationTimeout,
			fmt.Sprintf("%s not %s in time", url, wait.Kind), err)
	}
	return errs.Wrap(errs.ErrorTypeNavigation, "failed to load "+url, err)
}

// CurrentURL returns the tab's location.
func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var u string
	err := c.run(ctx, c.opts.SelectorTimeout, chromedp.Location(&u))
	return u, err
}

// Cookies reads the jar, limited to the configured domain.
func (c *Chrome) Cookies(ctx context.Context) ([]models.SessionCookie, error) {
	var raw []*network.Cookie
	err := c.run(ctx, c.opts.SelectorTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}

	out := make([]models.SessionCookie, 0, len(raw))
	for _, nc := range raw {
		if c.opts.CookieDomain != "" && !strings.HasSuffix(strings.TrimPrefix(nc.Domain, "."), c.opts.CookieDomain) {
			continue
		}
		out = append(out, fromNetworkCookie(nc))
	}
	return out, nil
}

// SetCookies writes cookies into the jar.
func (c *Chrome) SetCookies(ctx context.Context, cookies []models.SessionCookie) error {
	return c.run(ctx, c.opts.SelectorTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, sc := range cookies {
			if err := toSetCookie(sc).Do(ctx); err != nil {
				return fmt.Errorf("set cookie %s: %w", sc.Name, err)
			}
		}
		return nil
	}))
}

// ClearCookies empties the jar.
func (c *Chrome) ClearCookies(ctx context.Context) error {
	return c.run(ctx, c.opts.SelectorTimeout, network.ClearBrowserCookies())
}

// Exists reports whether selector matches.
func (c *Chrome) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	js := fmt.Sprintf("document.querySelector(%s) !== null", jsString(selector))
	err := c.run(ctx, c.opts.SelectorTimeout, chromedp.Evaluate(js, &found))
	return found, err
}

// Text returns document.body.innerText.
func (c *Chrome) Text(ctx context.Context) (string, error) {
	var text string
	err := c.run(ctx, c.opts.SelectorTimeout,
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text))
	return text, err
}

// HTML returns the serialised document.
func (c *Chrome) HTML(ctx context.Context) (string, error) {
	var html string
	err := c.run(ctx, c.opts.SelectorTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// Hrefs returns the href attribute of every match.
func (c *Chrome) Hrefs(ctx context.Context, selector string) ([]string, error) {
	var hrefs []string
	js := fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(a => a.getAttribute("href") || "")`, jsString(selector))
	err := c.run(ctx, c.opts.SelectorTimeout, chromedp.Evaluate(js, &hrefs))
	return hrefs, err
}

// Type clears the field and types text with a jittered per-key delay.
func (c *Chrome) Type(ctx context.Context, selector, text string) error {
	actions := []chromedp.Action{
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
	}
	for _, r := range text {
		actions = append(actions, chromedp.SendKeys(selector, string(r), chromedp.ByQuery))
		if c.opts.TypingDelay > 0 {
			actions = append(actions, chromedp.Sleep(jitter(c.opts.TypingDelay)))
		}
	}

	budget := c.opts.SelectorTimeout + time.Duration(len(text))*2*c.opts.TypingDelay
	if err := c.run(ctx, budget, actions...); err != nil {
		return fmt.Errorf("type into %s: %w", selector, err)
	}
	return nil
}

// Click clicks the target if it becomes visible within timeout.
func (c *Chrome) Click(ctx context.Context, target Target, timeout time.Duration) (bool, error) {
	by := chromedp.ByQuery
	if target.By == ByXPath {
		by = chromedp.BySearch
	}

	err := c.run(ctx, timeout, chromedp.WaitVisible(target.Selector, by))
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}

	if err := c.run(ctx, c.opts.SelectorTimeout, chromedp.Click(target.Selector, by, chromedp.NodeVisible)); err != nil {
		return false, fmt.Errorf("click %s: %w", target.Selector, err)
	}
	return true, nil
}

// ScrollToBottom scrolls to the end of the document.
func (c *Chrome) ScrollToBottom(ctx context.Context) (int64, error) {
	var height float64
	err := c.run(ctx, c.opts.SelectorTimeout, chromedp.Evaluate(
		`window.scrollTo(0, document.body.scrollHeight); document.body.scrollHeight`, &height))
	return int64(height), err
}

// pngQuality makes chromedp encode PNG; any lower quality yields JPEG.
const pngQuality = 100

// Screenshot captures the full page as PNG.
func (c *Chrome) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := c.run(ctx, c.opts.NavigationTimeout, chromedp.FullScreenshot(&buf, pngQuality)); err != nil {
		return nil, err
	}
	if _, err := png.DecodeConfig(bytes.NewReader(buf)); err != nil {
		return nil, fmt.Errorf("screenshot is not PNG: %w", err)
	}
	return buf, nil
}

// DismissKnownPopups runs DefaultDismissAttempts.
func (c *Chrome) DismissKnownPopups(ctx context.Context) int {
	n, names := dismissAll(ctx, c.Click, DefaultDismissAttempts, c.opts.PopupTimeout)
	if n > 0 {
		c.log.WithField("popups", names).Debug("Dismissed popups")
	}
	return n
}

// Close shuts the browser down.
func (c *Chrome) Close() error {
	var err error
	c.once.Do(func() {
		closeCtx, cancel := context.WithTimeout(c.tab, 5*time.Second)
		defer cancel()
		err = chromedp.Cancel(closeCtx)
		for _, cancel := range c.cancel {
			cancel()
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			err = nil
		}
		c.log.Debug("Browser closed")
	})
	return err
}

func fromNetworkCookie(nc *network.Cookie) models.SessionCookie {
	sc := models.SessionCookie{
		Name:     nc.Name,
		Value:    nc.Value,
		Domain:   nc.Domain,
		Path:     nc.Path,
		HTTPOnly: nc.HTTPOnly,
		Secure:   nc.Secure,
		SameSite: string(nc.SameSite),
	}
	if !nc.Session && nc.Expires > 0 {
		sc.Expires = nc.Expires
	}
	return sc
}

func toSetCookie(sc models.SessionCookie) *network.SetCookieParams {
	domain := sc.Domain
	if domain == "" {
		domain = ".instagram.com"
	}
	path := sc.Path
	if path == "" {
		path = "/"
	}

	p := network.SetCookie(sc.Name, sc.Value).
		WithDomain(domain).
		WithPath(path).
		WithSecure(sc.Secure).
		WithHTTPOnly(sc.HTTPOnly)
	if sc.SameSite != "" {
		p = p.WithSameSite(network.CookieSameSite(sc.SameSite))
	}
	if !sc.Session() {
		exp := cdp.TimeSinceEpoch(time.Unix(int64(sc.Expires), 0))
		p = p.WithExpires(&exp)
	}
	return p
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
