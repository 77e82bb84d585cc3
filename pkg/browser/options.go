package browser

import (
	"time"

	"github.com/chromedp/chromedp"

	"igreels/pkg/config"
	"igreels/pkg/models"
)

// DefaultUserAgent is a realistic desktop Chrome user agent
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Options configures a browser launch. It is fixed for the lifetime of
// the controller.
type Options struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	Locale         string
	Timezone       string
	ExecPath       string
	Proxy          *models.ProxyConfig

	// CookieDomain limits Cookies to this domain suffix.
	CookieDomain string

	NavigationTimeout time.Duration
	SelectorTimeout   time.Duration
	PopupTimeout      time.Duration
	LaunchTimeout     time.Duration
	TypingDelay       time.Duration
}

// OptionsFromConfig builds launch options from the run configuration.
func OptionsFromConfig(cfg *config.Config, proxy *models.ProxyConfig) Options {
	return Options{
		Headless:          cfg.Browser.Headless,
		ViewportWidth:     cfg.Browser.ViewportWidth,
		ViewportHeight:    cfg.Browser.ViewportHeight,
		UserAgent:         cfg.Browser.UserAgent,
		Locale:            cfg.Browser.Locale,
		Timezone:          cfg.Browser.Timezone,
		ExecPath:          cfg.Browser.ExecPath,
		Proxy:             proxy,
		CookieDomain:      "instagram.com",
		NavigationTimeout: cfg.Limits.NavigationTimeout,
		SelectorTimeout:   cfg.Limits.SelectorTimeout,
		PopupTimeout:      2500 * time.Millisecond,
		LaunchTimeout:     45 * time.Second,
		TypingDelay:       cfg.Session.TypingDelay,
	}
}

func (o Options) withDefaults() Options {
	if o.ViewportWidth <= 0 || o.ViewportHeight <= 0 {
		o.ViewportWidth, o.ViewportHeight = 1280, 900
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Locale == "" {
		o.Locale = "en-US"
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 30 * time.Second
	}
	if o.SelectorTimeout <= 0 {
		o.SelectorTimeout = 20 * time.Second
	}
	if o.PopupTimeout <= 0 {
		o.PopupTimeout = 2500 * time.Millisecond
	}
	if o.LaunchTimeout <= 0 {
		o.LaunchTimeout = 45 * time.Second
	}
	return o
}

// allocatorOptions returns chromedp allocator options with the
// automation fingerprint removed.
func allocatorOptions(o Options) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),

		// Prevent navigator.webdriver = true
		chromedp.Flag("disable-blink-features", "AutomationControlled"),

		chromedp.UserAgent(o.UserAgent),
		chromedp.WindowSize(o.ViewportWidth, o.ViewportHeight),

		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", o.Locale),
	)

	if o.Headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	if o.Proxy != nil {
		opts = append(opts, chromedp.ProxyServer(o.Proxy.Address()))
	}

	return opts
}
