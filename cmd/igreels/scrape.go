package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"igreels/internal/artifacts"
	"igreels/pkg/auth"
	"igreels/pkg/config"
	"igreels/pkg/instagram"
	"igreels/pkg/logger"
	"igreels/pkg/models"
	"igreels/pkg/proxy"
	"igreels/pkg/scraper"
	"igreels/pkg/session"
	"igreels/pkg/storage"
	"igreels/pkg/ui"
	"igreels/pkg/ui/tui"
)

var (
	accountsFile  string
	maxPosts      int
	outputFile    string
	resumeRun     bool
	useTUI        bool
	grid          string
	loginUser     string
	skipProcessed bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [usernames...]",
	Short: "Extract post metadata from one or more accounts",
	Long: `Log in once and extract the most recent reels of each account.

Accounts come from the arguments, from --file (one per line, # comments
allowed), or from schedule.accounts in the config file. Leading @ and
profile URLs are accepted.

The run writes a JSON object keyed by account, in input order. A failed
post is kept with extraction_error set. A fatal launch or login failure
ends the run with a non-zero exit status after writing any partial result.`,
	Example: `  # Two accounts, default settings
  igreels scrape nasa esa

  # Accounts from a file, 20 posts each, live dashboard
  igreels scrape --file accounts.txt --max-posts 20 --tui

  # Continue a run that was interrupted
  igreels scrape --file accounts.txt --resume`,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	f := scrapeCmd.Flags()
	f.StringVarP(&accountsFile, "file", "f", "", "file with one username per line")
	f.IntVarP(&maxPosts, "max-posts", "n", 0, "maximum posts per account")
	f.StringVarP(&outputFile, "output", "o", "", "results file")
	f.BoolVar(&resumeRun, "resume", false, "resume from the checkpoint of an interrupted run")
	f.BoolVar(&useTUI, "tui", false, "show the interactive dashboard")
	f.StringVar(&grid, "grid", "", "grid to read: reels or posts")
	f.StringVarP(&loginUser, "username", "u", "", "Instagram account to log in with")
	f.BoolVar(&skipProcessed, "skip-processed", false, "skip posts already in the database")
}

func runScrape(cmd *cobra.Command, args []string) error {
	extra := map[string]interface{}{
		"max-posts": maxPosts,
		"output":    outputFile,
		"grid":      grid,
		"username":  loginUser,
	}
	if cmd.Flags().Changed("skip-processed") {
		extra["skip-processed"] = skipProcessed
	}
	cfg, err := loadConfig(cmd, extra)
	if err != nil {
		return err
	}

	var logOut io.Writer = os.Stderr
	if useTUI {
		// the dashboard owns the terminal
		logOut = io.Discard
	}
	log, err := setupLogger(cfg, logOut)
	if err != nil {
		return err
	}

	accounts, err := collectAccounts(args, accountsFile, cfg.Schedule.Accounts, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cookies, err := auth.NewManagerFromConfig(cfg.Session)
	if err != nil {
		return fmt.Errorf("cookie store: %w", err)
	}
	if useTUI {
		// the dashboard owns stdin once it starts
		if err := ensurePassword(ctx, cfg, cookies); err != nil {
			return err
		}
	}

	env, err := newRunEnv(cfg, log)
	if err != nil {
		return err
	}
	defer env.Close()

	if !useTUI {
		ui.PrintInfo("Accounts", fmt.Sprintf("%d", len(accounts)))
	}

	deps := env.deps(cookies)
	var result *models.ScrapeResult
	var runErr error
	if useTUI {
		result, runErr = runWithTUI(ctx, cfg, deps, accounts, env)
	} else {
		deps.Observer = env.observers(ui.NewProgressDisplay(os.Stdout, verbose), os.Stdout)
		result, runErr = runOnce(ctx, cfg, deps, accounts)
	}

	if err := writeResults(cfg, result, runErr); err != nil {
		log.WithError(err).Error("Could not write results")
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// collectAccounts merges arguments and the accounts file, falling back
// to the configured schedule list.
func collectAccounts(args []string, file string, fallback []string, log logger.Logger) ([]string, error) {
	raw := append([]string{}, args...)
	if file != "" {
		lines, err := instagram.ReadAccountsFile(file)
		if err != nil {
			return nil, err
		}
		raw = append(raw, lines...)
	}
	if len(raw) == 0 {
		raw = fallback
	}

	accounts, invalid := instagram.AccountList(raw)
	for _, name := range invalid {
		log.WithField("input", name).Warn("Skipping invalid username")
	}
	if len(accounts) == 0 {
		return nil, errors.New("no valid accounts given; pass usernames or --file")
	}
	return accounts, nil
}

// ensurePassword prompts for the login password up front when no fresh
// cookies exist and the password was not configured. Without the
// dashboard the session asks for it lazily instead.
func ensurePassword(ctx context.Context, cfg *config.Config, cookies *auth.Manager) error {
	if cfg.Session.Username == "" || cfg.Session.Password != "" {
		return nil
	}
	if set, err := cookies.Load(cfg.Session.Username); err == nil && !set.Stale(time.Now(), cfg.Session.MaxAge) {
		return nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	pw, err := session.ReadLine(ctx, os.Stdin, os.Stderr,
		fmt.Sprintf("Password for @%s: ", cfg.Session.Username), true)
	if err != nil {
		return err
	}
	cfg.Session.Password = pw
	return nil
}

func runOnce(ctx context.Context, cfg *config.Config, deps scraper.Deps, accounts []string) (*models.ScrapeResult, error) {
	sc, err := scraper.New(cfg, deps)
	if err != nil {
		return nil, err
	}
	return sc.Run(ctx, accounts, scraper.RunOptions{Resume: resumeRun})
}

// runWithTUI runs the dashboard and the scrape side by side. Quitting the
// dashboard cancels the run.
func runWithTUI(ctx context.Context, cfg *config.Config, deps scraper.Deps, accounts []string, env *runEnv) (*models.ScrapeResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	dash := tui.NewTUI(accounts, tui.WithQuit(cancel))
	// stdin belongs to the dashboard
	deps.Prompter = nil
	deps.Observer = env.observers(dash, io.Discard)

	var (
		result *models.ScrapeResult
		runErr error
	)
	g := new(errgroup.Group)
	g.Go(func() error {
		err := dash.Start()
		cancel()
		return err
	})
	g.Go(func() error {
		defer dash.Stop()
		result, runErr = runOnce(runCtx, cfg, deps, accounts)
		return nil
	})
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = fmt.Errorf("dashboard: %w", err)
	}

	if result != nil {
		posts, failed := result.Totals()
		ui.PrintInfo("Extracted", fmt.Sprintf("%d posts from %d accounts (%d failed)", posts, result.Len(), failed))
	}
	return result, runErr
}

func writeResults(cfg *config.Config, result *models.ScrapeResult, runErr error) error {
	if result == nil {
		return nil
	}
	if runErr != nil && result.Len() == 0 {
		return nil
	}
	if err := storage.WriteResults(cfg.Output.ResultsFile, result, cfg.Output.Pretty); err != nil {
		return err
	}
	ui.PrintSuccess("Results written to " + cfg.Output.ResultsFile)
	return nil
}

// runEnv owns the per-run collaborators that need closing.
type runEnv struct {
	cfg     *config.Config
	log     logger.Logger
	posts   *storage.PostStore
	pool    *artifacts.WorkerPool
	rotator *proxy.Rotator
}

func newRunEnv(cfg *config.Config, log logger.Logger) (*runEnv, error) {
	env := &runEnv{cfg: cfg, log: log}

	if cfg.Store.Database != "" {
		posts, err := storage.OpenPostStore(cfg.Store.Database)
		if err != nil {
			log.WithError(err).Warn("Post database unavailable, continuing without it")
		} else {
			env.posts = posts
		}
	}

	if cfg.Output.Screenshots {
		shots, err := storage.NewManager(cfg.Output.ScreenshotsDir)
		if err != nil {
			log.WithError(err).Warn("Screenshot directory unavailable, screenshots disabled")
		} else {
			env.pool = artifacts.NewWorkerPool(2, shots, log)
			env.pool.Start()
		}
	}

	if cfg.Browser.ProxyListFile != "" {
		rotator, err := proxy.LoadFile(cfg.Browser.ProxyListFile, log)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.rotator = rotator
	}
	return env, nil
}

func (e *runEnv) deps(cookies *auth.Manager) scraper.Deps {
	d := scraper.Deps{
		Launch:   scraper.ChromeLauncher(e.cfg, e.rotator, e.log),
		Cookies:  cookies,
		Prompter: session.NewTerminalPrompter(),
		Logger:   e.log,
	}
	if e.posts != nil {
		d.Posts = e.posts
	}
	if e.pool != nil {
		d.Artifacts = e.pool
	}
	return d
}

// observers appends the notification observer when enabled.
func (e *runEnv) observers(primary ui.Observer, w io.Writer) ui.Observer {
	obs := ui.Observers{primary}
	if n := ui.NewNotifyObserver(e.cfg.Notifications, w); n != nil {
		obs = append(obs, n)
	}
	return obs
}

func (e *runEnv) Close() {
	if e.pool != nil {
		summary := e.pool.Stop()
		if summary.Written > 0 || summary.Failed > 0 {
			e.log.WithFields(map[string]interface{}{
				"written": summary.Written,
				"failed":  summary.Failed,
				"dropped": summary.Dropped,
			}).Info("Error screenshots saved")
		}
	}
	if e.posts != nil {
		if err := e.posts.Close(); err != nil {
			e.log.WithError(err).Warn("Closing post database failed")
		}
	}
}
