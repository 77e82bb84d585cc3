package scraper

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"igreels/pkg/auth"
	"igreels/pkg/browser"
	"igreels/pkg/checkpoint"
	"igreels/pkg/config"
	errs "igreels/pkg/errors"
	"igreels/pkg/instagram"
	"igreels/pkg/logger"
	"igreels/pkg/models"
	"igreels/pkg/storage"
	"igreels/pkg/ui"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	homeURL        = instagram.HomeURL()
	loggedInMarker = instagram.LoggedInMarkers[0]
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Session.Username = "tester"
	cfg.Session.Password = "hunter2"
	cfg.Session.LoginTimeout = 50 * time.Millisecond
	cfg.Session.PollInterval = time.Millisecond
	cfg.Limits.MaxPosts = 5
	cfg.Limits.ScrollPause = 0
	cfg.Limits.SettleDelay = 0
	cfg.Limits.NavigationRetries = 1
	cfg.Pacing.PostDelay = 0
	cfg.Pacing.AccountDelay = 0
	cfg.RateLimit.NavigationsPerMinute = 0
	cfg.RateLimit.RetryDelay = 0
	cfg.RateLimit.FailureThreshold = 2
	cfg.RateLimit.Window = time.Minute
	cfg.Checkpoint.Directory = filepath.Join(t.TempDir(), "checkpoints")
	return cfg
}

func postHTML(caption string) string {
	return fmt.Sprintf(`<html><head><script type="application/ld+json">
{"@type":"VideoObject","caption":%q,"uploadDate":"2024-05-01T10:00:00Z"}
</script></head><body></body></html>`, caption)
}

// site scripts a fake Instagram: a login form accepting hunter2 and one
// grid of reels per account.
type site struct {
	*browser.FakeController
}

func newSite() *site {
	s := &site{FakeController: browser.NewFakeController()}
	s.AddPage(instagram.LoginURL, &browser.FakePage{Elements: map[string]bool{
		instagram.UsernameInput: true,
		instagram.PasswordInput: true,
		instagram.SubmitButton:  true,
	}})
	s.AddPage(homeURL, &browser.FakePage{})

	s.OnNavigate = func(f *browser.FakeController, url string) {
		if url != homeURL {
			return
		}
		jar, _ := f.Cookies(context.Background())
		valid := false
		for _, c := range jar {
			valid = valid || (c.Name == "sessionid" && c.Value == "valid")
		}
		f.SetElement(homeURL, loggedInMarker, valid)
		f.SetElement(homeURL, instagram.LoggedOutMarker, !valid)
	}
	s.OnClick = func(f *browser.FakeController, target browser.Target) {
		if target.Selector != instagram.SubmitButton {
			return
		}
		if f.Typed(instagram.PasswordInput) != "hunter2" {
			f.SetElement(instagram.LoginURL, "#slfErrorAlert", true)
			return
		}
		_ = f.SetCookies(context.Background(), []models.SessionCookie{
			{Name: "sessionid", Value: "valid", Domain: ".instagram.com", Path: "/"},
		})
		f.SetElement(homeURL, loggedInMarker, true)
		f.SetCurrent(homeURL)
	}
	return s
}

// account adds a grid with n reels, each with a JSON-LD page.
func (s *site) account(name string, n int) []models.PostRef {
	var (
		hrefs []string
		refs  []models.PostRef
	)
	for i := 0; i < n; i++ {
		code := fmt.Sprintf("%s%02d", name, i)
		ref := models.PostRef{Shortcode: code, URL: instagram.GetPostURL(code, models.KindReel), Kind: models.KindReel}
		hrefs = append(hrefs, fmt.Sprintf("/reel/%s/", code))
		refs = append(refs, ref)
		s.AddPage(ref.URL, &browser.FakePage{HTML: postHTML("post " + code)})
	}
	s.AddPage(instagram.GridURL(name, instagram.GridReels), &browser.FakePage{Anchors: hrefs, PageSize: 2})
	return refs
}

func (s *site) launcher() Launcher {
	return func(ctx context.Context) (browser.Controller, error) {
		return s, nil
	}
}

// recorder collects observer events.
type recorder struct {
	ui.NopObserver
	mu      sync.Mutex
	events  []string
	summary ui.RunSummary
}

func (r *recorder) add(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) AccountStarted(account string, index, total int) {
	r.add("start %s %d/%d", account, index+1, total)
}

func (r *recorder) PostsDiscovered(account string, count int) {
	r.add("found %s %d", account, count)
}

func (r *recorder) AccountFinished(account string, posts, failed int, err error) {
	r.add("done %s %d/%d", account, posts, failed)
}

func (r *recorder) RateLimitSuspected(failures int, window time.Duration, policy string) {
	r.add("rate-limit %s", policy)
}

func (r *recorder) RunFinished(summary ui.RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = summary
}

type artifactSink struct {
	mu    sync.Mutex
	shots []string
}

func (a *artifactSink) SubmitScreenshot(account, shortcode string, png []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shots = append(a.shots, account+"/"+shortcode)
}

func newScraper(t *testing.T, cfg *config.Config, s *site, deps Deps) *Scraper {
	t.Helper()
	deps.Launch = s.launcher()
	if deps.Logger == nil {
		deps.Logger = logger.NewTestLogger()
	}
	sc, err := New(cfg, deps)
	require.NoError(t, err)
	return sc
}

func TestRunLogsInAndScrapesAccount(t *testing.T) {
	s := newSite()
	s.account("nasa", 8)
	store := auth.NewMockStore()
	rec := &recorder{}

	sc := newScraper(t, testConfig(t), s, Deps{Cookies: store, Observer: rec})
	result, err := sc.Run(context.Background(), []string{"nasa"}, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"nasa"}, result.Accounts())
	posts, _ := result.Posts("nasa")
	require.Len(t, posts, 5)
	for i, p := range posts {
		assert.Equal(t, fmt.Sprintf("nasa%02d", i), p.Shortcode)
		assert.False(t, p.ExtractionError)
		assert.Equal(t, "post "+p.Shortcode, p.CaptionText())
		assert.Equal(t, "Reel", *p.Type)
		assert.True(t, *p.IsVideo)
	}

	assert.Contains(t, s.Navigations(), instagram.LoginURL)
	assert.Equal(t, 1, store.Saves(), "session cookies persisted after login")
	assert.True(t, s.Closed())
	assert.Equal(t, []string{"start nasa 1/1", "found nasa 5", "done nasa 5/0"}, rec.events)
	assert.Equal(t, 5, rec.summary.Posts)
	assert.NoError(t, rec.summary.Err)
}

func TestRunAbortsOnLoginFailure(t *testing.T) {
	s := newSite()
	s.account("nasa", 3)
	cfg := testConfig(t)
	cfg.Session.Password = "wrong"

	sc := newScraper(t, cfg, s, Deps{Cookies: auth.NewMockStore()})
	result, err := sc.Run(context.Background(), []string{"nasa"}, RunOptions{})

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeLoginFailed))
	assert.True(t, errs.Fatal(err))
	assert.Equal(t, 0, result.Len())
	assert.NotContains(t, s.Navigations(), instagram.GridURL("nasa", instagram.GridReels))
	assert.True(t, s.Closed())
}

func TestRunAbortsOnLaunchFailure(t *testing.T) {
	sc, err := New(testConfig(t), Deps{
		Launch: func(ctx context.Context) (browser.Controller, error) {
			return nil, errs.New(errs.ErrorTypeLaunch, "chrome not found")
		},
		Logger: logger.NewNopLogger(),
	})
	require.NoError(t, err)

	result, err := sc.Run(context.Background(), []string{"nasa"}, RunOptions{})
	assert.True(t, errs.Is(err, errs.ErrorTypeLaunch))
	assert.Equal(t, 0, result.Len())
}

func TestRunContinuesPastFailedPostsAndAccounts(t *testing.T) {
	s := newSite()
	refs := s.account("nasa", 3)
	s.Page(refs[1].URL).HTML = `<html><body><div>nothing</div></body></html>`
	s.AddPage(instagram.GridURL("gone", instagram.GridReels), &browser.FakePage{
		Text: "Sorry, this page isn't available.",
	})
	s.account("esa", 1)
	sink := &artifactSink{}

	sc := newScraper(t, testConfig(t), s, Deps{Cookies: auth.NewMockStore(), Artifacts: sink})
	result, err := sc.Run(context.Background(), []string{"nasa", "gone", "esa"}, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"nasa", "gone", "esa"}, result.Accounts())

	nasa, _ := result.Posts("nasa")
	require.Len(t, nasa, 3)
	assert.False(t, nasa[0].ExtractionError)
	assert.True(t, nasa[1].ExtractionError)
	assert.Nil(t, nasa[1].Caption)
	assert.Nil(t, nasa[1].Date)
	assert.Nil(t, nasa[1].IsVideo)
	assert.Nil(t, nasa[1].Type)
	assert.False(t, nasa[2].ExtractionError)

	gone, ok := result.Posts("gone")
	assert.True(t, ok)
	assert.Empty(t, gone)

	esa, _ := result.Posts("esa")
	assert.Len(t, esa, 1)

	assert.Equal(t, []string{"nasa/" + refs[1].Shortcode}, sink.shots)
	posts, failed := result.Totals()
	assert.Equal(t, 4, posts)
	assert.Equal(t, 1, failed)
}

func TestRunStopsWhenRateLimitSuspected(t *testing.T) {
	s := newSite()
	refs := s.account("nasa", 4)
	s.account("esa", 1)
	for _, ref := range refs {
		s.FailNavigation(ref.URL, errs.New(errs.ErrorTypeNavigation, "net::ERR_CONNECTION_RESET"))
	}
	cfg := testConfig(t)
	cfg.RateLimit.OnSuspected = "stop"
	rec := &recorder{}

	sc := newScraper(t, cfg, s, Deps{Cookies: auth.NewMockStore(), Observer: rec})
	result, err := sc.Run(context.Background(), []string{"nasa", "esa"}, RunOptions{})

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeRateLimitSuspected))
	assert.False(t, errs.Fatal(err))
	assert.Equal(t, []string{"nasa"}, result.Accounts())
	nasa, _ := result.Posts("nasa")
	assert.Len(t, nasa, 2)
	assert.Contains(t, rec.events, "rate-limit stop")
	assert.True(t, s.Closed())

	// the interrupted run can be resumed
	mgr, err := checkpoint.NewManager(cfg.Checkpoint.Directory, []string{"nasa", "esa"}, nil)
	require.NoError(t, err)
	assert.True(t, mgr.Exists())
}

func TestRunWarnPolicyContinues(t *testing.T) {
	s := newSite()
	refs := s.account("nasa", 3)
	for _, ref := range refs {
		s.FailNavigation(ref.URL, errs.New(errs.ErrorTypeNavigation, "net::ERR_CONNECTION_RESET"))
	}
	rec := &recorder{}

	sc := newScraper(t, testConfig(t), s, Deps{Cookies: auth.NewMockStore(), Observer: rec})
	result, err := sc.Run(context.Background(), []string{"nasa"}, RunOptions{})

	require.NoError(t, err)
	nasa, _ := result.Posts("nasa")
	assert.Len(t, nasa, 3)
	assert.Contains(t, rec.events, "rate-limit warn")
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	s := newSite()
	s.account("nasa", 2)
	s.account("esa", 2)
	cfg := testConfig(t)
	accounts := []string{"nasa", "esa"}

	mgr, err := checkpoint.NewManager(cfg.Checkpoint.Directory, accounts, nil)
	require.NoError(t, err)
	cp, err := mgr.Create("earlier-run")
	require.NoError(t, err)
	require.NoError(t, mgr.RecordAccount(cp, "nasa", []models.PostDetail{{Shortcode: "kept", URL: "u"}}))

	rec := &recorder{}
	sc := newScraper(t, cfg, s, Deps{Cookies: auth.NewMockStore(), Observer: rec})
	result, err := sc.Run(context.Background(), accounts, RunOptions{Resume: true})
	require.NoError(t, err)

	assert.Equal(t, accounts, result.Accounts())
	nasa, _ := result.Posts("nasa")
	require.Len(t, nasa, 1)
	assert.Equal(t, "kept", nasa[0].Shortcode)
	esa, _ := result.Posts("esa")
	assert.Len(t, esa, 2)

	assert.NotContains(t, s.Navigations(), instagram.GridURL("nasa", instagram.GridReels))
	assert.Equal(t, "earlier-run", rec.summary.RunID)
	assert.False(t, mgr.Exists(), "checkpoint removed after a complete run")
}

func TestRunSkipsProcessedPosts(t *testing.T) {
	ctx := context.Background()
	posts, err := storage.OpenPostStore(filepath.Join(t.TempDir(), "igreels.db"))
	require.NoError(t, err)
	defer posts.Close()

	cfg := testConfig(t)
	cfg.Store.SkipProcessed = true

	s := newSite()
	s.account("nasa", 3)
	sc := newScraper(t, cfg, s, Deps{Cookies: auth.NewMockStore(), Posts: posts})
	_, err = sc.Run(ctx, []string{"nasa"}, RunOptions{})
	require.NoError(t, err)

	stats, err := posts.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Runs)

	s2 := newSite()
	s2.account("nasa", 4)
	sc = newScraper(t, cfg, s2, Deps{Cookies: auth.NewMockStore(), Posts: posts})
	result, err := sc.Run(ctx, []string{"nasa"}, RunOptions{})
	require.NoError(t, err)

	nasa, _ := result.Posts("nasa")
	require.Len(t, nasa, 1)
	assert.Equal(t, "nasa03", nasa[0].Shortcode)
}

func TestRunUsesPersistedCookies(t *testing.T) {
	s := newSite()
	s.account("nasa", 1)
	store := auth.NewMockStore()
	store.Put("tester", &models.CookieSet{
		Cookies: []models.SessionCookie{{Name: "sessionid", Value: "valid", Domain: ".instagram.com", Path: "/"}},
		SavedAt: time.Now(),
	})

	sc := newScraper(t, testConfig(t), s, Deps{Cookies: store})
	_, err := sc.Run(context.Background(), []string{"nasa"}, RunOptions{})
	require.NoError(t, err)
	assert.NotContains(t, s.Navigations(), instagram.LoginURL)
}

func TestRunCancelledMidAccount(t *testing.T) {
	s := newSite()
	refs := s.account("nasa", 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prev := s.OnNavigate
	s.OnNavigate = func(f *browser.FakeController, url string) {
		prev(f, url)
		if url == refs[1].URL {
			cancel()
		}
	}

	sc := newScraper(t, testConfig(t), s, Deps{Cookies: auth.NewMockStore()})
	result, err := sc.Run(ctx, []string{"nasa", "esa"}, RunOptions{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, s.Closed())
	nasa, _ := result.Posts("nasa")
	assert.Len(t, nasa, 1, "only posts finished before cancellation are kept")
	assert.NotContains(t, result.Accounts(), "esa")
}

func TestNewValidatesDeps(t *testing.T) {
	_, err := New(nil, Deps{})
	assert.Error(t, err)
	_, err = New(testConfig(t), Deps{})
	assert.True(t, errs.Is(err, errs.ErrorTypeConfiguration))
}

func TestRunRejectsEmptyAccountList(t *testing.T) {
	sc := newScraper(t, testConfig(t), newSite(), Deps{})
	_, err := sc.Run(context.Background(), nil, RunOptions{})
	assert.True(t, errs.Is(err, errs.ErrorTypeConfiguration))
}
