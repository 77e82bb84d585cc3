package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igreels/pkg/auth"
	"igreels/pkg/browser"
	errs "igreels/pkg/errors"
	"igreels/pkg/instagram"
	"igreels/pkg/logger"
	"igreels/pkg/models"
)

const twoFactorURL = instagram.BaseURL + "/accounts/login/two_factor?next=%2F"

var (
	homeURL        = instagram.HomeURL()
	loggedInMarker = instagram.LoggedInMarkers[0]
	codeInput      = instagram.TwoFactorInputs[0]
	confirmButton  = instagram.TwoFactorConfirmButtons[0]
)

func cookieSet(session string) *models.CookieSet {
	return &models.CookieSet{
		Cookies: []models.SessionCookie{
			{Name: "csrftoken", Value: "csrf", Domain: ".instagram.com", Path: "/"},
			{Name: "sessionid", Value: session, Domain: ".instagram.com", Path: "/"},
		},
		SavedAt: time.Now().Add(-time.Hour),
	}
}

func testOptions() Options {
	return Options{
		Credentials:       models.Credentials{Username: "tester", Password: "hunter2"},
		MaxAge:            72 * time.Hour,
		TwoFactorAttempts: 3,
		LoginTimeout:      80 * time.Millisecond,
		PollInterval:      time.Millisecond,
		NavigationRetries: 1,
	}
}

// site scripts a fake Instagram: the home page is logged in when the jar
// holds sessionid=valid, the login form accepts hunter2 and, when twoFA
// is set, asks for code 123456 first.
type site struct {
	*browser.FakeController
	twoFA     bool
	challenge bool
}

func newSite(t *testing.T) *site {
	t.Helper()
	s := &site{FakeController: browser.NewFakeController()}
	s.AddPage(instagram.LoginURL, &browser.FakePage{Elements: map[string]bool{
		instagram.UsernameInput: true,
		instagram.PasswordInput: true,
		instagram.SubmitButton:  true,
	}})
	s.AddPage(homeURL, &browser.FakePage{})
	s.AddPage(twoFactorURL, &browser.FakePage{Elements: map[string]bool{
		codeInput:     true,
		confirmButton: true,
	}})

	s.OnNavigate = func(f *browser.FakeController, url string) {
		if url != homeURL {
			return
		}
		jar, _ := f.Cookies(context.Background())
		valid := false
		for _, c := range jar {
			if c.Name == "sessionid" && c.Value == "valid" {
				valid = true
			}
		}
		f.SetElement(homeURL, loggedInMarker, valid)
		f.SetElement(homeURL, instagram.LoggedOutMarker, !valid)
	}

	s.OnClick = func(f *browser.FakeController, target browser.Target) {
		switch target.Selector {
		case instagram.SubmitButton:
			if f.Typed(instagram.PasswordInput) != "hunter2" {
				f.SetElement(instagram.LoginURL, "#slfErrorAlert", true)
				return
			}
			if s.challenge {
				f.SetCurrent(instagram.BaseURL + "/challenge/action/")
				return
			}
			if s.twoFA {
				f.SetCurrent(twoFactorURL)
				return
			}
			s.logIn()
		case confirmButton:
			if f.Typed(codeInput) == "123456" {
				s.logIn()
				return
			}
			f.Page(twoFactorURL).Text = "Please check the security code and try again."
		}
	}
	return s
}

func (s *site) logIn() {
	_ = s.SetCookies(context.Background(), []models.SessionCookie{
		{Name: "sessionid", Value: "valid", Domain: ".instagram.com", Path: "/"},
		{Name: "ds_user_id", Value: "42", Domain: ".instagram.com", Path: "/"},
	})
	s.SetElement(homeURL, loggedInMarker, true)
	s.SetCurrent(homeURL)
}

func recordStates(m *Manager) *[]State {
	var states []State
	m.OnTransition = func(from, to State) { states = append(states, to) }
	return &states
}

func TestEstablishWithValidCookiesSkipsLogin(t *testing.T) {
	s := newSite(t)
	store := auth.NewMockStore()
	store.Put("tester", cookieSet("valid"))

	m := New(s, store, nil, testOptions(), logger.NewTestLogger())
	states := recordStates(m)

	require.NoError(t, m.Establish(context.Background()))
	assert.Equal(t, Authenticated, m.State())
	assert.Equal(t, []State{CookiesLoaded, Verifying, Authenticated}, *states)
	assert.NotContains(t, s.Navigations(), instagram.LoginURL)
	assert.Empty(t, s.Typed(instagram.UsernameInput))
	assert.Equal(t, 1, store.Saves())
}

func TestEstablishWithInvalidCookiesFallsBackToLogin(t *testing.T) {
	s := newSite(t)
	store := auth.NewMockStore()
	stale := cookieSet("expired-session")
	store.Put("tester", stale)

	m := New(s, store, nil, testOptions(), nil)
	states := recordStates(m)

	require.NoError(t, m.Establish(context.Background()))
	assert.Equal(t, []State{CookiesLoaded, Verifying, Unauthenticated, Authenticated}, *states)
	assert.Equal(t, "tester", s.Typed(instagram.UsernameInput))
	assert.Equal(t, "hunter2", s.Typed(instagram.PasswordInput))

	saved, err := store.Load("tester")
	require.NoError(t, err)
	assert.False(t, saved.Equal(stale))
	c, _ := saved.Get("sessionid")
	assert.Equal(t, "valid", c.Value)
}

func TestEstablishIgnoresStaleCookies(t *testing.T) {
	s := newSite(t)
	store := auth.NewMockStore()
	old := cookieSet("valid")
	old.SavedAt = time.Now().Add(-100 * time.Hour)
	store.Put("tester", old)

	m := New(s, store, nil, testOptions(), nil)
	states := recordStates(m)

	require.NoError(t, m.Establish(context.Background()))
	assert.Equal(t, []State{Authenticated}, *states)
	assert.Contains(t, s.Navigations(), instagram.LoginURL)
}

func TestEstablishWithoutCookiesOrCredentials(t *testing.T) {
	s := newSite(t)
	opts := testOptions()
	opts.Credentials = models.Credentials{Username: "tester"}

	m := New(s, auth.NewMockStore(), nil, opts, nil)
	err := m.Establish(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeLoginFailed, errs.TypeOf(err))
	assert.True(t, errs.Fatal(err))
	assert.Equal(t, LoginFailed, m.State())
	assert.Empty(t, s.Navigations())

	// A failed manager stays failed.
	assert.Error(t, m.Establish(context.Background()))
}

func TestEstablishAsksForPasswordAfterRejectedCookies(t *testing.T) {
	s := newSite(t)
	store := auth.NewMockStore()
	store.Put("tester", cookieSet("expired-session"))
	opts := testOptions()
	opts.Credentials.Password = ""
	prompter := NewStaticPrompter().WithPassword("hunter2")

	m := New(s, store, prompter, opts, nil)
	states := recordStates(m)

	require.NoError(t, m.Establish(context.Background()))
	assert.Equal(t, []State{CookiesLoaded, Verifying, Unauthenticated, Authenticated}, *states)
	assert.Equal(t, 1, prompter.PasswordCalls())
	assert.Equal(t, "hunter2", s.Typed(instagram.PasswordInput))

	saved, err := store.Load("tester")
	require.NoError(t, err)
	c, _ := saved.Get("sessionid")
	assert.Equal(t, "valid", c.Value)
}

func TestEstablishDoesNotAskForPasswordWithValidCookies(t *testing.T) {
	s := newSite(t)
	store := auth.NewMockStore()
	store.Put("tester", cookieSet("valid"))
	opts := testOptions()
	opts.Credentials.Password = ""
	prompter := NewStaticPrompter().WithPassword("hunter2")

	m := New(s, store, prompter, opts, nil)
	require.NoError(t, m.Establish(context.Background()))
	assert.Equal(t, 0, prompter.PasswordCalls())
	assert.NotContains(t, s.Navigations(), instagram.LoginURL)
}

func TestEstablishPrompterWithoutPassword(t *testing.T) {
	s := newSite(t)
	opts := testOptions()
	opts.Credentials.Password = ""
	prompter := NewStaticPrompter()

	m := New(s, auth.NewMockStore(), prompter, opts, nil)
	err := m.Establish(context.Background())
	assert.True(t, errs.Is(err, errs.ErrorTypeLoginFailed))
	assert.Equal(t, 1, prompter.PasswordCalls())
	assert.NotContains(t, s.Navigations(), instagram.LoginURL)
}

func TestEstablishRejectedPassword(t *testing.T) {
	s := newSite(t)
	opts := testOptions()
	opts.Credentials.Password = "wrong"

	m := New(s, nil, nil, opts, nil)
	err := m.Establish(context.Background())
	assert.True(t, errs.Is(err, errs.ErrorTypeLoginFailed))
	assert.Contains(t, err.Error(), "credentials rejected")
	assert.Equal(t, LoginFailed, m.State())
}

func TestEstablishChallengeIsLoginFailure(t *testing.T) {
	s := newSite(t)
	s.challenge = true

	m := New(s, nil, nil, testOptions(), nil)
	err := m.Establish(context.Background())
	assert.True(t, errs.Is(err, errs.ErrorTypeLoginFailed))
	assert.Contains(t, err.Error(), "checkpoint")
}

func TestEstablishTwoFactorRetriesUntilAccepted(t *testing.T) {
	s := newSite(t)
	s.twoFA = true
	store := auth.NewMockStore()
	prompter := NewStaticPrompter("000000", "123456")

	m := New(s, store, prompter, testOptions(), nil)
	states := recordStates(m)

	require.NoError(t, m.Establish(context.Background()))
	assert.Equal(t, []State{AwaitingTwoFactor, Authenticated}, *states)
	assert.Equal(t, 2, prompter.Calls())
	assert.Equal(t, 1, store.Saves())
}

func TestEstablishTwoFactorExhausted(t *testing.T) {
	s := newSite(t)
	s.twoFA = true
	prompter := NewStaticPrompter("1", "2", "3", "4")

	m := New(s, nil, prompter, testOptions(), nil)
	err := m.Establish(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeTwoFactorFailed, errs.TypeOf(err))
	assert.Equal(t, TwoFactorFailed, m.State())
	assert.Equal(t, 3, prompter.Calls())
}

func TestEstablishTwoFactorWithoutPrompter(t *testing.T) {
	s := newSite(t)
	s.twoFA = true

	m := New(s, nil, nil, testOptions(), nil)
	err := m.Establish(context.Background())
	assert.True(t, errs.Is(err, errs.ErrorTypeTwoFactorFailed))
}

func TestPersistSkipsIncompleteJar(t *testing.T) {
	s := newSite(t)
	s.OnClick = func(f *browser.FakeController, target browser.Target) {
		_ = f.SetCookies(context.Background(), []models.SessionCookie{{Name: "csrftoken", Value: "x"}})
		f.SetElement(homeURL, loggedInMarker, true)
		f.SetCurrent(homeURL)
	}
	store := auth.NewMockStore()
	log := logger.NewTestLogger()

	m := New(s, store, nil, testOptions(), log)
	require.NoError(t, m.Establish(context.Background()))
	assert.Equal(t, 0, store.Saves())
	assert.True(t, log.HasMessage("Cookie set has no sessionid, not persisting"))
}

func TestPersistFailureIsNotFatal(t *testing.T) {
	s := newSite(t)
	store := auth.NewMockStore()
	store.SaveError = auth.ErrStoreUnavailable

	m := New(s, store, nil, testOptions(), nil)
	require.NoError(t, m.Establish(context.Background()))
	assert.Equal(t, Authenticated, m.State())
}

func TestEstablishHonoursCancellation(t *testing.T) {
	s := newSite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := New(s, nil, nil, testOptions(), nil)
	assert.ErrorIs(t, m.Establish(ctx), context.Canceled)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "awaiting_two_factor", AwaitingTwoFactor.String())
	assert.True(t, Authenticated.Terminal())
	assert.False(t, Verifying.Terminal())
}

func TestPromptFunc(t *testing.T) {
	var p TwoFactorPrompter = PromptFunc(func(ctx context.Context, username string, attempt int) (string, error) {
		return username + "-code", nil
	})
	code, err := p.PromptCode(context.Background(), "u", 1)
	require.NoError(t, err)
	assert.Equal(t, "u-code", code)

	_, err = NewStaticPrompter().PromptCode(context.Background(), "u", 1)
	assert.ErrorIs(t, err, ErrNoCode)
}
