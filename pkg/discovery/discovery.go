// Package discovery collects post references from a profile grid by
// scrolling until enough posts are found or the grid stops growing.
package discovery

import (
	"context"
	"strings"
	"time"

	"igreels/pkg/browser"
	"igreels/pkg/config"
	errs "igreels/pkg/errors"
	"igreels/pkg/instagram"
	"igreels/pkg/logger"
	"igreels/pkg/models"
	"igreels/pkg/ratelimit"
	"igreels/pkg/retry"
)

// Options bound a discovery run.
type Options struct {
	MaxPosts          int
	MaxScrollAttempts int
	// StallLimit is how many scrolls in a row may add nothing new.
	StallLimit        int
	ScrollPause       time.Duration
	Grid              instagram.Grid
	NavigationRetries int
	RetryDelay        time.Duration
}

// OptionsFromConfig reads discovery limits from the run configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxPosts:          cfg.Limits.MaxPosts,
		MaxScrollAttempts: cfg.Limits.MaxScrollAttempts,
		StallLimit:        cfg.Limits.StallLimit,
		ScrollPause:       cfg.Limits.ScrollPause,
		Grid:              instagram.Grid(cfg.Limits.Grid),
		NavigationRetries: cfg.Limits.NavigationRetries,
		RetryDelay:        cfg.RateLimit.RetryDelay,
	}
}

// Discoverer reads post anchors from a grid page.
type Discoverer struct {
	ctrl   browser.Controller
	opts   Options
	log    logger.Logger
	budget ratelimit.Limiter
}

// New creates a Discoverer. budget may be nil.
func New(ctrl browser.Controller, opts Options, budget ratelimit.Limiter, log logger.Logger) *Discoverer {
	if opts.MaxPosts <= 0 {
		opts.MaxPosts = 50
	}
	if opts.MaxScrollAttempts <= 0 {
		opts.MaxScrollAttempts = 25
	}
	if opts.StallLimit <= 0 {
		opts.StallLimit = 3
	}
	if opts.Grid == "" {
		opts.Grid = instagram.GridReels
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Discoverer{
		ctrl:   ctrl,
		opts:   opts,
		budget: budget,
		log:    log.WithField("component", "discovery"),
	}
}

// Discover returns up to MaxPosts refs in grid order with no duplicate
// shortcodes. Refs collected before an error are returned with it.
func (d *Discoverer) Discover(ctx context.Context, username string) ([]models.PostRef, error) {
	log := d.log.WithField("account", username)
	if !instagram.IsValidUsername(username) {
		return nil, errs.Newf(errs.ErrorTypeConfiguration, "invalid username %q", username).ForAccount(username)
	}

	gridURL := instagram.GridURL(username, d.opts.Grid)
	if err := d.open(ctx, gridURL); err != nil {
		return nil, err
	}

	if reason, ok := d.unavailable(ctx); ok {
		log.WithField("reason", reason).Warn("Account unavailable")
		return nil, errs.New(errs.ErrorTypeAccountUnavailable, reason).ForAccount(username)
	}

	var (
		refs    []models.PostRef
		seen    = make(map[string]bool)
		stalled int
		scrolls int
	)
	for {
		added, err := d.collect(ctx, seen, &refs)
		if err != nil {
			return refs, err
		}
		if len(refs) >= d.opts.MaxPosts {
			log.WithField("found", len(refs)).Debug("Post limit reached")
			break
		}

		if added == 0 {
			stalled++
		} else {
			stalled = 0
		}
		if stalled >= d.opts.StallLimit {
			log.WithFields(map[string]interface{}{"found": len(refs), "scrolls": scrolls}).
				Debug("Grid stopped growing")
			break
		}
		if scrolls >= d.opts.MaxScrollAttempts {
			log.WithField("found", len(refs)).Debug("Scroll budget exhausted")
			break
		}

		if _, err := d.ctrl.ScrollToBottom(ctx); err != nil {
			if ctx.Err() != nil {
				return refs, ctx.Err()
			}
			log.WithError(err).Warn("Scroll failed")
		}
		scrolls++
		if err := retry.Wait(ctx, d.opts.ScrollPause); err != nil {
			return refs, err
		}
	}

	log.InfoWithFields("Discovered posts", map[string]interface{}{
		"found":   len(refs),
		"scrolls": scrolls,
	})
	return refs, nil
}

func (d *Discoverer) open(ctx context.Context, url string) error {
	cfg := retry.Navigation(d.opts.NavigationRetries, d.opts.RetryDelay, d.log)
	cfg.Name = "grid_navigation"
	return retry.Do(ctx, func(int) error {
		if d.budget != nil {
			if err := d.budget.Wait(ctx); err != nil {
				return err
			}
		}
		return d.ctrl.Navigate(ctx, url, browser.WaitIdle())
	}, cfg)
}

func (d *Discoverer) unavailable(ctx context.Context) (string, bool) {
	text, err := d.ctrl.Text(ctx)
	if err != nil {
		return "", false
	}
	for _, u := range instagram.UnavailablePages {
		if strings.Contains(text, u.Phrase) {
			return u.Reason, true
		}
	}
	return "", false
}

// collect appends new refs from the visible anchors, stopping at the cap.
func (d *Discoverer) collect(ctx context.Context, seen map[string]bool, refs *[]models.PostRef) (int, error) {
	hrefs, err := d.ctrl.Hrefs(ctx, instagram.PostAnchors)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, errs.Wrap(errs.ErrorTypeNavigation, "could not read grid anchors", err)
	}

	added := 0
	for _, href := range hrefs {
		if len(*refs) >= d.opts.MaxPosts {
			break
		}
		ref, ok := instagram.ParsePostRef(href)
		if !ok || seen[ref.Shortcode] {
			continue
		}
		seen[ref.Shortcode] = true
		*refs = append(*refs, ref)
		added++
	}
	return added, nil
}
