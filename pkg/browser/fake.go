package browser

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sync"
	"time"

	errs "igreels/pkg/errors"
	"igreels/pkg/models"
)

// FakePage is a scripted page served by FakeController.
type FakePage struct {
	HTML string
	Text string
	// Elements are the selectors that match on this page.
	Elements map[string]bool
	// Popups match like Elements but disappear once clicked.
	Popups map[string]bool
	// Anchors are returned by Hrefs, PageSize at a time per scroll.
	Anchors  []string
	PageSize int

	scrolls int
}

func (p *FakePage) revealed() int {
	if p.PageSize <= 0 {
		return len(p.Anchors)
	}
	return min(p.PageSize*(p.scrolls+1), len(p.Anchors))
}

// FakeController is an in-memory Controller for tests. Unknown URLs load
// as empty pages.
type FakeController struct {
	mu sync.Mutex

	pages     map[string]*FakePage
	navErrors map[string][]error
	current   string
	jar       []models.SessionCookie

	// OnNavigate runs after every successful navigation.
	OnNavigate func(f *FakeController, url string)
	// OnClick runs after every successful click.
	OnClick func(f *FakeController, target Target)

	ScreenshotErr error
	HTMLErr       error

	typed       map[string]string
	clicks      []string
	navigations []string
	screenshots int
	closed      bool
}

// NewFakeController returns an empty fake.
func NewFakeController() *FakeController {
	return &FakeController{
		pages:     make(map[string]*FakePage),
		navErrors: make(map[string][]error),
		typed:     make(map[string]string),
	}
}

// AddPage registers a page at url.
func (f *FakeController) AddPage(url string, p *FakePage) *FakeController {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.Elements == nil {
		p.Elements = make(map[string]bool)
	}
	if p.Popups == nil {
		p.Popups = make(map[string]bool)
	}
	f.pages[url] = p
	return f
}

// Page returns the page registered at url.
func (f *FakeController) Page(url string) *FakePage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pages[url]
}

// FailNavigation queues errors returned by the next navigations to url.
func (f *FakeController) FailNavigation(url string, errors ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navErrors[url] = append(f.navErrors[url], errors...)
}

// SetElement toggles a selector on the page at url.
func (f *FakeController) SetElement(url, selector string, present bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pageLocked(url)
	p.Elements[selector] = present
}

// SetCurrent moves the fake to url without recording a navigation.
func (f *FakeController) SetCurrent(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageLocked(url)
	f.current = url
}

func (f *FakeController) pageLocked(url string) *FakePage {
	p, ok := f.pages[url]
	if !ok {
		p = &FakePage{Elements: map[string]bool{}, Popups: map[string]bool{}}
		f.pages[url] = p
	}
	return p
}

func (f *FakeController) Navigate(ctx context.Context, url string, wait WaitCondition) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	f.navigations = append(f.navigations, url)
	if queued := f.navErrors[url]; len(queued) > 0 {
		f.navErrors[url] = queued[1:]
		f.mu.Unlock()
		return queued[0]
	}
	p := f.pageLocked(url)
	p.scrolls = 0
	f.current = url
	missing := wait.Kind == WaitElement && !p.Elements[wait.Selector]
	hook := f.OnNavigate
	f.mu.Unlock()

	if missing {
		return errs.Newf(errs.ErrorTypeNavigationTimeout, "%s not %s in time", url, wait.Kind)
	}
	if hook != nil {
		hook(f, url)
	}
	return nil
}

func (f *FakeController) CurrentURL(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *FakeController) Cookies(ctx context.Context) ([]models.SessionCookie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.SessionCookie(nil), f.jar...), nil
}

func (f *FakeController) SetCookies(ctx context.Context, cookies []models.SessionCookie) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range cookies {
		replaced := false
		for i := range f.jar {
			if f.jar[i].Name == c.Name {
				f.jar[i] = c
				replaced = true
			}
		}
		if !replaced {
			f.jar = append(f.jar, c)
		}
	}
	return nil
}

func (f *FakeController) ClearCookies(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jar = nil
	return nil
}

func (f *FakeController) Exists(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pageLocked(f.current)
	return p.Elements[selector] || p.Popups[selector], nil
}

func (f *FakeController) Text(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pageLocked(f.current).Text, nil
}

func (f *FakeController) HTML(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.HTMLErr != nil {
		return "", f.HTMLErr
	}
	return f.pageLocked(f.current).HTML, nil
}

// Hrefs returns the revealed anchors of the current page whatever the
// selector.
func (f *FakeController) Hrefs(ctx context.Context, selector string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pageLocked(f.current)
	return append([]string(nil), p.Anchors[:p.revealed()]...), nil
}

func (f *FakeController) Type(ctx context.Context, selector, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.pageLocked(f.current).Elements[selector] {
		return fmt.Errorf("type into %s: element not found", selector)
	}
	f.typed[selector] = text
	return nil
}

func (f *FakeController) Click(ctx context.Context, target Target, timeout time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	f.mu.Lock()
	p := f.pageLocked(f.current)
	switch {
	case p.Popups[target.Selector]:
		delete(p.Popups, target.Selector)
	case p.Elements[target.Selector]:
	default:
		f.mu.Unlock()
		return false, nil
	}
	f.clicks = append(f.clicks, target.Selector)
	hook := f.OnClick
	f.mu.Unlock()

	if hook != nil {
		hook(f, target)
	}
	return true, nil
}

func (f *FakeController) ScrollToBottom(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pageLocked(f.current)
	p.scrolls++
	return int64(p.revealed() * 100), nil
}

func (f *FakeController) Screenshot(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ScreenshotErr != nil {
		return nil, f.ScreenshotErr
	}
	f.screenshots++
	return append([]byte(nil), placeholderPNG...), nil
}

// placeholderPNG is a 1x1 image returned by FakeController.Screenshot.
var placeholderPNG = func() []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
		panic(err)
	}
	return buf.Bytes()
}()

func (f *FakeController) DismissKnownPopups(ctx context.Context) int {
	n, _ := dismissAll(ctx, f.Click, DefaultDismissAttempts, 0)
	return n
}

func (f *FakeController) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Typed returns what was typed into selector.
func (f *FakeController) Typed(selector string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.typed[selector]
}

// Clicks returns the clicked selectors in order.
func (f *FakeController) Clicks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.clicks...)
}

// Navigations returns every requested URL in order, failed ones included.
func (f *FakeController) Navigations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.navigations...)
}

// Screenshots returns how many screenshots were taken.
func (f *FakeController) Screenshots() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.screenshots
}

// Closed reports whether Close was called.
func (f *FakeController) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

var _ Controller = (*FakeController)(nil)
var _ Controller = (*Chrome)(nil)
