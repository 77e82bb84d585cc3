package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"igreels/pkg/storage"
	"igreels/pkg/ui"
)

var pruneDays int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show what the post database holds",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		if _, err := setupLogger(cfg, os.Stderr); err != nil {
			return err
		}
		if cfg.Store.Database == "" {
			return errNoDatabase
		}
		posts, err := storage.OpenPostStore(cfg.Store.Database)
		if err != nil {
			return err
		}
		defer posts.Close()

		st, err := posts.Stats(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Database:      %s\n", cfg.Store.Database)
		fmt.Fprintf(out, "Posts:         %d (%d failed)\n", st.Total, st.Failed)
		fmt.Fprintf(out, "Last 24 hours: %d\n", st.Last24h)
		fmt.Fprintf(out, "Last hour:     %d\n", st.LastHour)
		fmt.Fprintf(out, "Runs:          %d\n", st.Runs)
		if len(st.PerAccount) > 0 {
			fmt.Fprintln(out, "\nPer account:")
			for _, ac := range st.Accounts() {
				fmt.Fprintf(out, "  @%-30s %d\n", ac.Account, ac.Posts)
			}
		}
		return nil
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete stored posts older than a number of days",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		log, err := setupLogger(cfg, os.Stderr)
		if err != nil {
			return err
		}
		days := cfg.Store.RetentionDays
		if cmd.Flags().Changed("days") {
			days = pruneDays
		}
		if days <= 0 {
			return errors.New("nothing to prune: set --days or store.retention_days")
		}
		n, err := prune(cmd.Context(), cfg.Store.Database, days)
		if err != nil {
			return err
		}
		log.WithFields(map[string]interface{}{"removed": n, "days": days}).Info("Pruned post database")
		ui.PrintSuccess(fmt.Sprintf("Removed %d posts older than %d days", n, days))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd, pruneCmd)
	pruneCmd.Flags().IntVar(&pruneDays, "days", 0, "retention in days (default: store.retention_days)")
}

var errNoDatabase = errors.New("no post database configured (store.database)")

func prune(ctx context.Context, path string, days int) (int64, error) {
	if path == "" {
		return 0, errNoDatabase
	}
	posts, err := storage.OpenPostStore(path)
	if err != nil {
		return 0, err
	}
	defer posts.Close()
	return posts.Cleanup(ctx, days)
}
