package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"igreels/pkg/browser"
	"igreels/pkg/checkpoint"
	"igreels/pkg/config"
	"igreels/pkg/discovery"
	errs "igreels/pkg/errors"
	"igreels/pkg/extractor"
	"igreels/pkg/logger"
	"igreels/pkg/models"
	"igreels/pkg/ratelimit"
	"igreels/pkg/retry"
	"igreels/pkg/session"
	"igreels/pkg/ui"
)

// PostIndex records extracted posts across runs.
type PostIndex interface {
	FilterProcessed(ctx context.Context, refs []models.PostRef) ([]models.PostRef, error)
	SaveDetails(ctx context.Context, runID, account string, details []models.PostDetail) error
	StartRun(ctx context.Context, runID string) error
	FinishRun(ctx context.Context, runID string, result *models.ScrapeResult, aborted string) error
}

// Deps are the collaborators of a run. Launch is required; the rest may
// be nil.
type Deps struct {
	Launch    Launcher
	Cookies   session.CookieStore
	Prompter  session.TwoFactorPrompter
	Posts     PostIndex
	Artifacts extractor.ArtifactSink
	Observer  ui.Observer
	Logger    logger.Logger
}

// RunOptions select per-run behaviour.
type RunOptions struct {
	// Resume continues from a checkpoint made for the same account list.
	Resume bool
}

// Scraper orchestrates one browser session over an ordered account list.
type Scraper struct {
	cfg      *config.Config
	deps     Deps
	observer ui.Observer
	logger   logger.Logger
	newID    func() string
}

// New creates a Scraper. cfg is read, never modified.
func New(cfg *config.Config, deps Deps) (*Scraper, error) {
	if cfg == nil {
		return nil, errs.New(errs.ErrorTypeConfiguration, "configuration is required")
	}
	if deps.Launch == nil {
		return nil, errs.New(errs.ErrorTypeConfiguration, "a browser launcher is required")
	}
	log := deps.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	observer := deps.Observer
	if observer == nil {
		observer = ui.NopObserver{}
	}

	return &Scraper{
		cfg:      cfg,
		deps:     deps,
		observer: observer,
		logger:   log.WithField("component", "scraper"),
		newID:    uuid.NewString,
	}, nil
}

// run carries the state of one Run call.
type run struct {
	id        string
	result    *models.ScrapeResult
	ckpt      *checkpoint.Manager
	cp        *checkpoint.Checkpoint
	detector  *ratelimit.Detector
	policy    ratelimit.Policy
	budget    *ratelimit.NavigationBudget
	discover  *discovery.Discoverer
	extract   *extractor.Extractor
	postPacer *ratelimit.Pacer
}

// Run authenticates once and scrapes accounts in order. It always returns
// a result holding every account attempted so far. The error is non-nil
// when the run ended early: a fatal launch or login failure (before any
// account), cancellation, or a rate-limit stop.
func (s *Scraper) Run(ctx context.Context, accounts []string, opts RunOptions) (*models.ScrapeResult, error) {
	start := time.Now()
	r := &run{id: s.newID(), result: models.NewScrapeResult()}

	if len(accounts) == 0 {
		return r.result, errs.New(errs.ErrorTypeConfiguration, "no accounts to scrape")
	}

	s.openCheckpoint(r, accounts, opts.Resume)
	if s.deps.Posts != nil {
		if err := s.deps.Posts.StartRun(ctx, r.id); err != nil {
			s.logger.WithError(err).Warn("Could not record run start")
		}
	}

	s.logger.InfoWithFields("Starting run", map[string]interface{}{
		"run_id":   r.id,
		"accounts": len(accounts),
		"resumed":  r.cp != nil && len(r.cp.Completed) > 0,
	})

	err := s.execute(ctx, r, accounts)
	s.finish(ctx, r, start, err)
	return r.result, err
}

func (s *Scraper) execute(ctx context.Context, r *run, accounts []string) error {
	ctrl, err := s.deps.Launch(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Browser launch failed")
		return err
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			s.logger.WithError(err).Warn("Browser close failed")
		}
	}()

	sess := session.New(ctrl, s.deps.Cookies, s.deps.Prompter, session.OptionsFromConfig(s.cfg), s.logger)
	sess.OnTransition = func(from, to session.State) {
		s.observer.SessionChanged(from.String(), to.String())
	}
	if err := sess.Establish(ctx); err != nil {
		s.logger.WithError(err).Error("Could not establish session, aborting run")
		return err
	}

	s.prepare(r, ctrl)
	accountPacer := ratelimit.NewPacer(s.cfg.Pacing.AccountDelay, s.cfg.Pacing.Jitter)

	processed := 0
	for i, account := range accounts {
		if r.cp != nil && r.cp.IsCompleted(account) {
			s.logger.WithField("account", account).Info("Account already completed, skipping")
			continue
		}
		if processed > 0 {
			if err := accountPacer.Wait(ctx); err != nil {
				return ctx.Err()
			}
		}
		processed++

		s.observer.AccountStarted(account, i, len(accounts))
		details, failed, accErr, stopErr := s.scrapeAccount(ctx, r, account)
		r.result.SetPosts(account, details)
		s.observer.AccountFinished(account, len(details), failed, accErr)

		if s.deps.Posts != nil {
			if err := s.deps.Posts.SaveDetails(ctx, r.id, account, details); err != nil {
				s.logger.WithError(err).WithField("account", account).Warn("Could not store post details")
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		if r.cp != nil {
			if err := r.ckpt.RecordAccount(r.cp, account, details); err != nil {
				s.logger.WithError(err).Warn("Could not update checkpoint")
			}
		}
		if stopErr != nil {
			return stopErr
		}
	}
	return nil
}

// prepare builds the per-run discovery and extraction components around
// the launched browser.
func (s *Scraper) prepare(r *run, ctrl browser.Controller) {
	rl := s.cfg.RateLimit
	r.budget = ratelimit.NewNavigationBudget(rl.NavigationsPerMinute, rl.BurstSize)
	r.detector = ratelimit.NewDetector(rl.FailureThreshold, rl.Window)
	r.policy = ratelimit.ParsePolicy(rl.OnSuspected)
	r.discover = discovery.New(ctrl, discovery.OptionsFromConfig(s.cfg), r.budget, s.logger)
	r.extract = extractor.New(ctrl, extractor.OptionsFromConfig(s.cfg), r.budget, s.deps.Artifacts, s.logger)
	r.postPacer = ratelimit.NewPacer(s.cfg.Pacing.PostDelay, s.cfg.Pacing.Jitter)
}

// scrapeAccount discovers and extracts one account. accErr describes a
// non-fatal account failure; stopErr ends the run.
func (s *Scraper) scrapeAccount(ctx context.Context, r *run, account string) (details []models.PostDetail, failed int, accErr, stopErr error) {
	log := s.logger.WithField("account", account)
	details = []models.PostDetail{}

	refs, err := r.discover.Discover(ctx, account)
	if err != nil {
		if ctx.Err() != nil {
			return details, 0, err, nil
		}
		accErr = err
		switch errs.TypeOf(err) {
		case errs.ErrorTypeAccountUnavailable:
			log.WithError(err).Warn("Account unavailable")
		default:
			log.WithError(err).WithField("refs", len(refs)).Error("Post discovery failed")
			if stopErr = s.noteFailure(ctx, r, err); stopErr != nil {
				return details, 0, accErr, stopErr
			}
		}
	}
	s.observer.PostsDiscovered(account, len(refs))

	if s.deps.Posts != nil && s.cfg.Store.SkipProcessed && len(refs) > 0 {
		fresh, err := s.deps.Posts.FilterProcessed(ctx, refs)
		if err != nil {
			log.WithError(err).Warn("Could not check processed posts")
		} else {
			if skipped := len(refs) - len(fresh); skipped > 0 {
				log.WithField("skipped", skipped).Info("Skipping already processed posts")
			}
			refs = fresh
		}
	}

	for i, ref := range refs {
		if i > 0 {
			if err := r.postPacer.Wait(ctx); err != nil {
				return details, failed, accErr, nil
			}
		}

		detail, err := r.extract.Extract(ctx, account, ref)
		if ctx.Err() != nil {
			return details, failed, accErr, nil
		}
		details = append(details, detail)
		s.observer.PostProcessed(account, detail, err)
		logger.LogAccountProgress(log, account, i+1, len(refs))

		if err == nil {
			continue
		}
		failed++
		if stopErr = s.noteFailure(ctx, r, err); stopErr != nil {
			return details, failed, accErr, stopErr
		}
	}
	return details, failed, accErr, nil
}

// noteFailure feeds navigation failures to the rate-limit detector and
// applies the configured policy once suspicion is raised. A non-nil return
// ends the run.
func (s *Scraper) noteFailure(ctx context.Context, r *run, err error) error {
	switch errs.TypeOf(err) {
	case errs.ErrorTypeNavigation, errs.ErrorTypeNavigationTimeout:
	default:
		return nil
	}

	suspected := r.detector.RecordFailure()
	if suspected == nil {
		return nil
	}

	window := r.detector.Window()
	threshold := s.cfg.RateLimit.FailureThreshold
	logger.LogRateLimitSuspected(s.logger, threshold, window, string(r.policy))
	s.observer.RateLimitSuspected(threshold, window, string(r.policy))

	switch r.policy {
	case ratelimit.PolicyStop:
		return suspected
	case ratelimit.PolicyPause:
		cooldown := s.cfg.RateLimit.Cooldown
		s.logger.WithField("cooldown", cooldown.String()).Warn("Pausing after suspected rate limit")
		if err := retry.Wait(ctx, cooldown); err != nil {
			return err
		}
		r.budget.Reset()
	}
	return nil
}

func (s *Scraper) openCheckpoint(r *run, accounts []string, resume bool) {
	if !s.cfg.Checkpoint.Enabled {
		return
	}
	mgr, err := checkpoint.NewManager(s.cfg.Checkpoint.Directory, accounts, s.logger)
	if err != nil {
		s.logger.WithError(err).Warn("Checkpoints disabled for this run")
		return
	}
	r.ckpt = mgr

	if resume {
		cp, err := mgr.Load()
		if err != nil {
			s.logger.WithError(err).Warn("Ignoring unreadable checkpoint")
		} else if cp != nil {
			r.cp = cp
			r.id = cp.RunID
			r.result = cp.Result
			return
		}
	}

	cp, err := mgr.Create(r.id)
	if err != nil {
		s.logger.WithError(err).Warn("Could not create checkpoint")
		r.ckpt = nil
		return
	}
	r.cp = cp
}

func (s *Scraper) finish(ctx context.Context, r *run, start time.Time, runErr error) {
	posts, failed := r.result.Totals()

	aborted := ""
	if runErr != nil {
		aborted = string(errs.TypeOf(runErr))
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			aborted = "cancelled"
		}
	}

	if s.deps.Posts != nil {
		// the run context may already be cancelled
		if err := s.deps.Posts.FinishRun(context.WithoutCancel(ctx), r.id, r.result, aborted); err != nil {
			s.logger.WithError(err).Warn("Could not record run end")
		}
	}
	if r.ckpt != nil && runErr == nil {
		if err := r.ckpt.Delete(); err != nil {
			s.logger.WithError(err).Warn("Could not delete checkpoint")
		}
	}

	fields := map[string]interface{}{
		"run_id":   r.id,
		"accounts": r.result.Len(),
		"posts":    posts,
		"failed":   failed,
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}
	if runErr != nil {
		s.logger.WithError(runErr).WithFields(fields).Error(fmt.Sprintf("Run ended early (%s)", aborted))
	} else {
		s.logger.InfoWithFields("Run completed", fields)
	}

	s.observer.RunFinished(ui.RunSummary{
		RunID:    r.id,
		Accounts: r.result.Len(),
		Posts:    posts,
		Failed:   failed,
		Duration: time.Since(start),
		Err:      runErr,
	})
}
