package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"igreels/pkg/auth"
	"igreels/pkg/config"
	"igreels/pkg/logger"
	"igreels/pkg/scheduler"
	"igreels/pkg/ui"
)

var (
	cronSpec   string
	runAtStart bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Scrape the configured accounts on a cron schedule",
	Long: `Run the scraper repeatedly for schedule.accounts. Runs never overlap;
a tick that arrives while a run is active is skipped. When
store.retention_days is set the post database is pruned daily.

Two-factor prompts are unavailable here: log in once with
'igreels auth login' so the stored session is reused.`,
	Example: `  igreels schedule --cron "0 */6 * * *"
  igreels schedule --now`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().StringVar(&cronSpec, "cron", "", "cron expression (default: schedule.cron)")
	scheduleCmd.Flags().BoolVar(&runAtStart, "now", false, "run once immediately before waiting")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	log, err := setupLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	spec := cronSpec
	if spec == "" {
		spec = cfg.Schedule.Cron
	}
	if spec == "" {
		return errors.New("no schedule: pass --cron or set schedule.cron")
	}
	accounts, err := collectAccounts(nil, "", cfg.Schedule.Accounts, log)
	if err != nil {
		return err
	}
	cookies, err := auth.NewManagerFromConfig(cfg.Session)
	if err != nil {
		return fmt.Errorf("cookie store: %w", err)
	}

	sched, err := scheduler.New(cfg.Schedule, log)
	if err != nil {
		return err
	}
	job := scheduledScrape(cfg, cookies, accounts, log)
	if err := sched.Add("scrape", spec, job); err != nil {
		return err
	}
	if days := cfg.Store.RetentionDays; days > 0 && cfg.Store.Database != "" {
		err := sched.Add("prune", "@daily", func(ctx context.Context) error {
			n, err := prune(ctx, cfg.Store.Database, days)
			if err == nil && n > 0 {
				log.WithField("removed", n).Info("Pruned post database")
			}
			return err
		})
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runAtStart {
		// a failed first run is logged; the schedule still starts
		_ = sched.RunNow(ctx, "scrape", job)
	}
	for _, j := range sched.Jobs() {
		ui.PrintInfo(j.Name, fmt.Sprintf("%s, next run %s", j.Schedule, j.NextRun.Format("2006-01-02 15:04 MST")))
	}
	return sched.Run(ctx)
}

// scheduledScrape returns a job that performs one full run over accounts
// and writes the results file.
func scheduledScrape(cfg *config.Config, cookies *auth.Manager, accounts []string, log logger.Logger) scheduler.Job {
	return func(ctx context.Context) error {
		env, err := newRunEnv(cfg, log)
		if err != nil {
			return err
		}
		defer env.Close()

		deps := env.deps(cookies)
		// nobody is at the terminal
		deps.Prompter = nil
		deps.Observer = env.observers(ui.NewProgressDisplay(os.Stdout, verbose), os.Stdout)

		result, runErr := runOnce(ctx, cfg, deps, accounts)
		if err := writeResults(cfg, result, runErr); err != nil && runErr == nil {
			runErr = err
		}
		return runErr
	}
}
