package session

import (
	"context"
	"errors"

	"igreels/pkg/browser"
	errs "igreels/pkg/errors"
	"igreels/pkg/instagram"
	"igreels/pkg/retry"
)

type outcome int

const (
	outcomePending outcome = iota
	outcomeLoggedIn
	outcomeTwoFactor
	outcomeRejected
	outcomeChallenge
)

var errCodeRejected = errors.New("two-factor code rejected")

// login submits the credential form and resolves any two-factor
// challenge.
func (m *Manager) login(ctx context.Context) error {
	if m.opts.Credentials.Username != "" && m.opts.Credentials.Password == "" {
		pw, err := m.askPassword(ctx)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			m.opts.Credentials.Password = pw
		}
	}
	creds := m.opts.Credentials
	if creds.Empty() {
		return m.fail(LoginFailed, errs.ErrorTypeLoginFailed, "no valid session cookies and no credentials supplied", nil)
	}

	if err := m.navigate(ctx, instagram.LoginURL, browser.WaitFor(instagram.UsernameInput)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return m.fail(LoginFailed, errs.ErrorTypeLoginFailed, "login page did not load", err)
	}
	m.ctrl.DismissKnownPopups(ctx)

	m.log.Info("Submitting login form")
	if err := m.ctrl.Type(ctx, instagram.UsernameInput, creds.Username); err != nil {
		return m.fail(LoginFailed, errs.ErrorTypeLoginFailed, "could not fill username", err)
	}
	if err := m.ctrl.Type(ctx, instagram.PasswordInput, creds.Password); err != nil {
		return m.fail(LoginFailed, errs.ErrorTypeLoginFailed, "could not fill password", err)
	}
	clicked, err := m.ctrl.Click(ctx, browser.CSS(instagram.SubmitButton), m.opts.LoginTimeout)
	if err != nil || !clicked {
		return m.fail(LoginFailed, errs.ErrorTypeLoginFailed, "login button not found", err)
	}

	result, err := m.awaitOutcome(ctx, false)
	if err != nil {
		return err
	}
	switch result {
	case outcomeLoggedIn:
		return nil
	case outcomeTwoFactor:
		return m.twoFactor(ctx)
	case outcomeChallenge:
		return m.fail(LoginFailed, errs.ErrorTypeLoginFailed, "account checkpoint requires manual verification", nil)
	case outcomeRejected:
		return m.fail(LoginFailed, errs.ErrorTypeLoginFailed, "credentials rejected", nil)
	default:
		return m.fail(LoginFailed, errs.ErrorTypeLoginFailed,
			"no login result within "+m.opts.LoginTimeout.String(), nil)
	}
}

// askPassword asks the prompter for the password when it can supply one.
func (m *Manager) askPassword(ctx context.Context) (string, error) {
	pp, ok := m.prompter.(PasswordPrompter)
	if !ok {
		return "", ErrNoPassword
	}
	m.log.Info("No password configured, asking for it")
	pw, err := pp.PromptPassword(ctx, m.opts.Credentials.Username)
	if err != nil {
		m.log.WithError(err).Warn("No password supplied")
	}
	return pw, err
}

// awaitOutcome polls the page until a login result is recognisable or
// the login timeout passes. After a submitted code, a rejection phrase
// is reported as outcomeRejected.
func (m *Manager) awaitOutcome(ctx context.Context, afterCode bool) (outcome, error) {
	deadline := m.now().Add(m.opts.LoginTimeout)
	for {
		if r := m.classify(ctx, afterCode); r != outcomePending {
			return r, nil
		}
		if !m.now().Before(deadline) {
			return outcomePending, nil
		}
		if err := retry.Wait(ctx, m.opts.PollInterval); err != nil {
			return outcomePending, err
		}
	}
}

func (m *Manager) classify(ctx context.Context, afterCode bool) outcome {
	if m.anyExists(ctx, instagram.LoggedInMarkers) {
		return outcomeLoggedIn
	}
	if u, err := m.ctrl.CurrentURL(ctx); err == nil && instagram.IsChallengeURL(u) {
		return outcomeChallenge
	}

	text, _ := m.ctrl.Text(ctx)
	if afterCode {
		if containsAny(text, instagram.TwoFactorRejectedPhrases) {
			return outcomeRejected
		}
		return outcomePending
	}

	if m.anyExists(ctx, instagram.TwoFactorInputs) || containsAny(text, instagram.TwoFactorPhrases) {
		return outcomeTwoFactor
	}
	if m.anyExists(ctx, instagram.LoginErrorMarkers) || containsAny(text, instagram.LoginErrorPhrases) {
		return outcomeRejected
	}
	return outcomePending
}

// twoFactor prompts for codes until one is accepted or the attempts run
// out.
func (m *Manager) twoFactor(ctx context.Context) error {
	m.transition(AwaitingTwoFactor)
	if m.prompter == nil {
		return m.fail(TwoFactorFailed, errs.ErrorTypeTwoFactorFailed, "two-factor challenge but no code prompter", nil)
	}

	cfg := retry.Config{
		MaxAttempts: m.opts.TwoFactorAttempts,
		Backoff:     &retry.ConstantBackoff{},
		RetryIf:     func(err error) bool { return errors.Is(err, errCodeRejected) },
		Logger:      m.log,
		Name:        "two_factor",
	}
	err := retry.Do(ctx, func(attempt int) error {
		return m.submitCode(ctx, attempt)
	}, cfg)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return m.fail(TwoFactorFailed, errs.ErrorTypeTwoFactorFailed, "two-factor verification failed", err)
}

func (m *Manager) submitCode(ctx context.Context, attempt int) error {
	code, err := m.prompter.PromptCode(ctx, m.opts.Credentials.Username, attempt)
	if err != nil {
		return err
	}

	input := ""
	for _, sel := range instagram.TwoFactorInputs {
		if ok, err := m.ctrl.Exists(ctx, sel); err == nil && ok {
			input = sel
			break
		}
	}
	if input == "" {
		return errors.New("two-factor input not found")
	}
	if err := m.ctrl.Type(ctx, input, code); err != nil {
		return err
	}

	clicked := false
	for _, xp := range instagram.TwoFactorConfirmButtons {
		if ok, _ := m.ctrl.Click(ctx, browser.XPath(xp), m.opts.PollInterval); ok {
			clicked = true
			break
		}
	}
	if !clicked {
		if ok, err := m.ctrl.Click(ctx, browser.CSS(instagram.SubmitButton), m.opts.PollInterval); err != nil || !ok {
			return errors.New("two-factor confirm button not found")
		}
	}

	result, err := m.awaitOutcome(ctx, true)
	if err != nil {
		return err
	}
	switch result {
	case outcomeLoggedIn:
		m.log.WithField("attempt", attempt).Info("Two-factor code accepted")
		return nil
	case outcomeChallenge:
		return errors.New("account checkpoint after two-factor")
	default:
		m.log.WithField("attempt", attempt).Warn("Two-factor code rejected")
		return errCodeRejected
	}
}
