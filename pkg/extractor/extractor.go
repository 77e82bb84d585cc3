// Package extractor turns a post page into a PostDetail, reading the
// embedded structured data first and scraping the DOM for anything it
// lacks.
package extractor

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"igreels/pkg/browser"
	"igreels/pkg/config"
	errs "igreels/pkg/errors"
	"igreels/pkg/logger"
	"igreels/pkg/models"
	"igreels/pkg/ratelimit"
	"igreels/pkg/retry"
)

// ArtifactSink receives diagnostic screenshots of failed posts.
type ArtifactSink interface {
	SubmitScreenshot(account, shortcode string, png []byte)
}

// Options tune detail extraction.
type Options struct {
	// NavigationTimeout is the base timeout; post pages get 1.5x.
	NavigationTimeout time.Duration
	// SettleDelay is the mean pause after load, jittered by a third.
	SettleDelay       time.Duration
	NavigationRetries int
	RetryDelay        time.Duration
	Screenshots       bool
}

// OptionsFromConfig reads extraction options from the run configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		NavigationTimeout: cfg.Limits.NavigationTimeout,
		SettleDelay:       cfg.Limits.SettleDelay,
		NavigationRetries: cfg.Limits.NavigationRetries,
		RetryDelay:        cfg.RateLimit.RetryDelay,
		Screenshots:       cfg.Output.Screenshots,
	}
}

// Extractor loads post pages and runs strategies over them.
type Extractor struct {
	ctrl       browser.Controller
	strategies []Strategy
	opts       Options
	budget     ratelimit.Limiter
	sink       ArtifactSink
	settle     *ratelimit.Pacer
	log        logger.Logger
}

// New creates an Extractor with DefaultStrategies. budget and sink may
// be nil.
func New(ctrl browser.Controller, opts Options, budget ratelimit.Limiter, sink ArtifactSink, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Extractor{
		ctrl:       ctrl,
		strategies: DefaultStrategies(),
		opts:       opts,
		budget:     budget,
		sink:       sink,
		settle:     ratelimit.NewPacer(opts.SettleDelay, 1.0/3),
		log:        log.WithField("component", "extractor"),
	}
}

// WithStrategies replaces the strategy list.
func (e *Extractor) WithStrategies(s ...Strategy) *Extractor {
	e.strategies = s
	return e
}

// Extract returns the detail for ref. A post that yields nothing comes
// back as a failed detail together with a non-fatal error; only context
// cancellation is returned as-is.
func (e *Extractor) Extract(ctx context.Context, account string, ref models.PostRef) (models.PostDetail, error) {
	start := time.Now()

	if err := e.load(ctx, ref.URL); err != nil {
		if ctx.Err() != nil {
			return models.FailedPostDetail(ref), ctx.Err()
		}
		return e.failed(ctx, account, ref, "", wrapForPost(err, account, ref.Shortcode))
	}

	html, err := e.ctrl.HTML(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return models.FailedPostDetail(ref), ctx.Err()
		}
		return e.failed(ctx, account, ref, "",
			errs.Wrap(errs.ErrorTypeExtraction, "could not read page", err).ForPost(account, ref.Shortcode))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return e.failed(ctx, account, ref, "",
			errs.Wrap(errs.ErrorTypeExtraction, "could not parse page", err).ForPost(account, ref.Shortcode))
	}

	fields, used := e.run(doc, ref)
	if !fields.HasContent() {
		return e.failed(ctx, account, ref, strings.Join(used, "+"),
			errs.New(errs.ErrorTypeExtraction, "no caption or date found").ForPost(account, ref.Shortcode))
	}

	detail := models.NewPostDetail(ref)
	detail.Caption = fields.Caption
	detail.Date = fields.Date
	detail.IsVideo = fields.IsVideo
	if detail.IsVideo == nil {
		detail.IsVideo = models.BoolPtr(ref.Kind == models.KindReel)
	}
	detail.Type = models.StringPtr(string(ref.Kind))

	logger.LogExtraction(e.log, account, ref.Shortcode, strings.Join(used, "+"), "", nil)
	e.log.WithFields(map[string]interface{}{
		"shortcode":   ref.Shortcode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Post page processed")
	return detail, nil
}

func (e *Extractor) load(ctx context.Context, url string) error {
	timeout := e.opts.NavigationTimeout * 3 / 2
	cfg := retry.Navigation(e.opts.NavigationRetries, e.opts.RetryDelay, e.log)
	cfg.Name = "post_navigation"

	err := retry.Do(ctx, func(int) error {
		if e.budget != nil {
			if err := e.budget.Wait(ctx); err != nil {
				return err
			}
		}
		return e.ctrl.Navigate(ctx, url, browser.WaitIdle().WithTimeout(timeout))
	}, cfg)
	if err != nil {
		return err
	}
	return e.settle.Wait(ctx)
}

// run applies strategies in order until every field is set, returning
// the names of the strategies that contributed.
func (e *Extractor) run(doc *goquery.Document, ref models.PostRef) (Fields, []string) {
	var (
		fields Fields
		used   []string
	)
	for _, s := range e.strategies {
		got, err := s.Extract(doc)
		if err != nil {
			e.log.WithFields(map[string]interface{}{
				"shortcode": ref.Shortcode,
				"strategy":  s.Name(),
			}).WithError(err).Debug("Strategy failed")
		}
		if fields.fill(got) {
			used = append(used, s.Name())
		}
		if fields.Complete() {
			break
		}
	}
	return fields, used
}

func (e *Extractor) failed(ctx context.Context, account string, ref models.PostRef, strategy string, err error) (models.PostDetail, error) {
	logger.LogExtraction(e.log, account, ref.Shortcode, strategy, string(errs.TypeOf(err)), err)

	if e.opts.Screenshots && e.sink != nil {
		png, shotErr := e.ctrl.Screenshot(ctx)
		if shotErr != nil {
			e.log.WithError(shotErr).Warn("Could not capture failure screenshot")
		} else {
			e.sink.SubmitScreenshot(account, ref.Shortcode, png)
		}
	}
	return models.FailedPostDetail(ref), err
}

// wrapForPost attaches the post to a classified error, keeping its type.
func wrapForPost(err error, account, shortcode string) error {
	t := errs.TypeOf(err)
	if t == errs.ErrorTypeUnknown {
		t = errs.ErrorTypeNavigation
	}
	return errs.Wrap(t, "could not load post page", err).ForPost(account, shortcode)
}
