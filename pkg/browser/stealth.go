package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// evasions hides the most common automation tells before any page
// script runs.
const evasions = `(() => {
  Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
  if (!window.chrome) { window.chrome = { runtime: {} }; }
  Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
  const query = window.navigator.permissions && window.navigator.permissions.query;
  if (query) {
    window.navigator.permissions.query = (p) =>
      p && p.name === 'notifications'
        ? Promise.resolve({ state: Notification.permission })
        : query(p);
  }
})();`

// acceptLanguage turns "en-US" into "en-US,en;q=0.9".
func acceptLanguage(locale string) string {
	base := locale
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		base = locale[:i]
	}
	if base == locale {
		return locale
	}
	return fmt.Sprintf("%s,%s;q=0.9", locale, base)
}

// stealthTasks make the automated tab look like a user-operated one.
func stealthTasks(o Options) chromedp.Tasks {
	tasks := chromedp.Tasks{
		emulation.SetUserAgentOverride(o.UserAgent).WithAcceptLanguage(acceptLanguage(o.Locale)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if _, err := page.AddScriptToEvaluateOnNewDocument(evasions).Do(ctx); err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}),
		emulation.SetLocaleOverride().WithLocale(o.Locale),
		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": acceptLanguage(o.Locale),
		}),
		page.SetLifecycleEventsEnabled(true),
	}
	if o.Timezone != "" {
		tasks = append(tasks, emulation.SetTimezoneOverride(o.Timezone))
	}
	return tasks
}
