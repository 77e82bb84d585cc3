package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"igreels/pkg/auth"
	"igreels/pkg/browser"
	"igreels/pkg/config"
	errs "igreels/pkg/errors"
	"igreels/pkg/instagram"
	"igreels/pkg/logger"
	"igreels/pkg/models"
	"igreels/pkg/retry"
)

// CookieStore is the persistence slot for session cookies.
type CookieStore interface {
	Load(username string) (*models.CookieSet, error)
	Save(username string, set *models.CookieSet) error
}

// Options tune session establishment.
type Options struct {
	Credentials       models.Credentials
	MaxAge            time.Duration
	TwoFactorAttempts int
	LoginTimeout      time.Duration
	PollInterval      time.Duration
	NavigationRetries int
	RetryDelay        time.Duration
}

// OptionsFromConfig reads session options from the run configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Credentials: models.Credentials{
			Username: cfg.Session.Username,
			Password: cfg.Session.Password,
		},
		MaxAge:            cfg.Session.MaxAge,
		TwoFactorAttempts: cfg.Session.TwoFactorAttempts,
		LoginTimeout:      cfg.Session.LoginTimeout,
		PollInterval:      cfg.Session.PollInterval,
		NavigationRetries: cfg.Limits.NavigationRetries,
		RetryDelay:        cfg.RateLimit.RetryDelay,
	}
}

// Manager establishes an authenticated session on a browser. It is the
// only writer of the browser's cookie jar.
type Manager struct {
	ctrl     browser.Controller
	store    CookieStore
	prompter TwoFactorPrompter
	opts     Options
	log      logger.Logger

	state State
	now   func() time.Time

	// OnTransition observes every state change.
	OnTransition func(from, to State)
}

// New creates a Manager. A nil store disables cookie persistence and a
// nil prompter fails any two-factor challenge.
func New(ctrl browser.Controller, store CookieStore, prompter TwoFactorPrompter, opts Options, log logger.Logger) *Manager {
	if opts.TwoFactorAttempts <= 0 {
		opts.TwoFactorAttempts = 3
	}
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = 30 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{
		ctrl:     ctrl,
		store:    store,
		prompter: prompter,
		opts:     opts,
		log:      log.WithFields(map[string]interface{}{"component": "session", "username": opts.Credentials.Username}),
		state:    Unauthenticated,
		now:      time.Now,
	}
}

// State returns the current state.
func (m *Manager) State() State {
	return m.state
}

func (m *Manager) transition(to State) {
	from := m.state
	m.state = to
	logger.LogSessionTransition(m.log, m.opts.Credentials.Username, from.String(), to.String())
	if m.OnTransition != nil {
		m.OnTransition(from, to)
	}
}

// Establish authenticates the browser. Persisted cookies are tried first;
// credential login runs only when they are absent, stale or rejected, and
// only then is a missing password asked of the prompter.
func (m *Manager) Establish(ctx context.Context) error {
	switch m.state {
	case Authenticated:
		return nil
	case LoginFailed, TwoFactorFailed:
		return errs.Newf(errs.ErrorTypeLoginFailed, "session already failed (%s)", m.state).
			ForAccount(m.opts.Credentials.Username)
	}

	ok, err := m.tryCookies(ctx)
	if err != nil {
		return err
	}
	if !ok {
		if err := m.login(ctx); err != nil {
			return err
		}
	}

	m.transition(Authenticated)
	m.persist(ctx)
	return nil
}

func (m *Manager) tryCookies(ctx context.Context) (bool, error) {
	if m.store == nil {
		return false, nil
	}

	set, err := m.store.Load(m.opts.Credentials.Username)
	if err != nil {
		if !errors.Is(err, auth.ErrCookiesNotFound) {
			m.log.WithError(err).Warn("Could not load persisted cookies")
		}
		return false, nil
	}
	if set.Stale(m.now(), m.opts.MaxAge) {
		m.log.WithField("saved_at", set.SavedAt).Info("Persisted cookies are stale, ignoring them")
		return false, nil
	}

	if err := m.ctrl.SetCookies(ctx, set.Cookies); err != nil {
		m.log.WithError(err).Warn("Could not load cookies into the browser")
		return false, nil
	}
	m.transition(CookiesLoaded)

	m.transition(Verifying)
	ok, err := m.verify(ctx)
	if err != nil {
		return false, err
	}
	if ok {
		m.log.Info("Session restored from cookies")
		return true, nil
	}

	m.log.Warn("Persisted cookies were rejected, falling back to credential login")
	if err := m.ctrl.ClearCookies(ctx); err != nil {
		m.log.WithError(err).Warn("Could not clear rejected cookies")
	}
	m.transition(Unauthenticated)
	return false, nil
}

// verify loads the home page and waits for a logged-in or logged-out
// marker.
func (m *Manager) verify(ctx context.Context) (bool, error) {
	if err := m.navigate(ctx, instagram.HomeURL(), browser.WaitDOMLoaded()); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		m.log.WithError(err).Warn("Verification page did not load")
		return false, nil
	}

	deadline := m.now().Add(m.opts.LoginTimeout)
	for {
		if m.anyExists(ctx, instagram.LoggedInMarkers) {
			return true, nil
		}
		if m.anyExists(ctx, []string{instagram.LoggedOutMarker}) {
			return false, nil
		}
		if u, err := m.ctrl.CurrentURL(ctx); err == nil && instagram.IsLoginURL(u) {
			return false, nil
		}
		if !m.now().Before(deadline) {
			return false, nil
		}
		if err := retry.Wait(ctx, m.opts.PollInterval); err != nil {
			return false, err
		}
	}
}

func (m *Manager) navigate(ctx context.Context, url string, wait browser.WaitCondition) error {
	cfg := retry.Navigation(m.opts.NavigationRetries, m.opts.RetryDelay, m.log)
	return retry.Do(ctx, func(int) error {
		return m.ctrl.Navigate(ctx, url, wait)
	}, cfg)
}

func (m *Manager) anyExists(ctx context.Context, selectors []string) bool {
	for _, sel := range selectors {
		if ok, err := m.ctrl.Exists(ctx, sel); err == nil && ok {
			return true
		}
	}
	return false
}

func (m *Manager) fail(state State, t errs.ErrorType, msg string, cause error) error {
	m.transition(state)
	var e *errs.Error
	if cause != nil {
		e = errs.Wrap(t, msg, cause)
	} else {
		e = errs.New(t, msg)
	}
	return e.ForAccount(m.opts.Credentials.Username)
}

// persist saves the browser's cookies when they form a complete set.
// Failures are logged; the session is usable regardless.
func (m *Manager) persist(ctx context.Context) {
	m.ctrl.DismissKnownPopups(ctx)

	if m.store == nil {
		return
	}
	cookies, err := m.ctrl.Cookies(ctx)
	if err != nil {
		m.log.WithError(err).Warn("Could not read cookies after login")
		return
	}

	set := &models.CookieSet{Cookies: cookies, SavedAt: m.now()}
	if !auth.Persistable(set) {
		m.log.WithField("cookies", len(cookies)).Warn("Cookie set has no sessionid, not persisting")
		return
	}
	if err := m.store.Save(m.opts.Credentials.Username, set); err != nil {
		m.log.WithError(err).Warn("Could not persist session cookies")
		return
	}
	m.log.WithField("cookies", len(cookies)).Debug("Session cookies persisted")
}

func containsAny(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
