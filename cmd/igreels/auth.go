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

	"igreels/pkg/auth"
	"igreels/pkg/config"
	"igreels/pkg/models"
	"igreels/pkg/scraper"
	"igreels/pkg/session"
	"igreels/pkg/ui"
)

var importUser string

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage persisted session cookies",
	Long: `Manage the session cookies igreels keeps between runs.

Cookies are stored in the configured backing (session.cookie_store):
  - file       JSON files in session.cookie_dir (default)
  - keyring    the system keychain, falling back to files
  - encrypted  a PBKDF2/AES-GCM encrypted file
  - env        only the INSTAGRAM_SESSION_COOKIES variable

Passwords are never stored.`,
}

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Log in through the browser and store the session",
	Long: `Open the browser, log in with the given account and persist the
session cookies. The password is read without echo; a two-factor code is
asked for when Instagram requests one.`,
	Example: `  igreels auth login myaccount
  igreels auth login myaccount --headless=false`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Remove stored cookies for an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts with stored cookies",
	RunE:  runList,
}

var importCmd = &cobra.Command{
	Use:   "import <cookies.json>",
	Short: "Import cookies exported from a desktop browser",
	Long: `Import a JSON cookie list exported from a logged-in desktop browser.
Use "-" to read from stdin. The list must contain the sessionid cookie.`,
	Example: `  igreels auth import --username myaccount cookies.json`,
	Args:    cobra.ExactArgs(1),
	RunE:    runImport,
}

var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Explain how to export session cookies",
	Run: func(cmd *cobra.Command, args []string) {
		auth.WriteCookieGuide(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, listCmd, importCmd, guideCmd)
	importCmd.Flags().StringVarP(&importUser, "username", "u", "", "account the cookies belong to (required)")
	_ = importCmd.MarkFlagRequired("username")
}

func authSetup(cmd *cobra.Command) (*config.Config, *auth.Manager, error) {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return nil, nil, err
	}
	if _, err := setupLogger(cfg, os.Stderr); err != nil {
		return nil, nil, err
	}
	cookies, err := auth.NewManagerFromConfig(cfg.Session)
	if err != nil {
		return nil, nil, fmt.Errorf("cookie store: %w", err)
	}
	return cfg, cookies, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	var extra map[string]interface{}
	if len(args) > 0 {
		extra = map[string]interface{}{"username": args[0]}
	}
	cfg, err := loadConfig(cmd, extra)
	if err != nil {
		return err
	}
	log, err := setupLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	cookies, err := auth.NewManagerFromConfig(cfg.Session)
	if err != nil {
		return fmt.Errorf("cookie store: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Session.Username == "" {
		name, err := session.ReadLine(ctx, os.Stdin, os.Stderr, "Instagram username: ", false)
		if err != nil {
			return err
		}
		cfg.Session.Username = name
	}
	if cfg.Session.Username == "" {
		return errors.New("username is required")
	}
	if cfg.Session.Password == "" {
		pw, err := session.ReadLine(ctx, os.Stdin, os.Stderr,
			fmt.Sprintf("Password for @%s: ", cfg.Session.Username), true)
		if err != nil {
			return err
		}
		cfg.Session.Password = pw
	}

	ctrl, err := scraper.ChromeLauncher(cfg, nil, log)(ctx)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	sess := session.New(ctrl, cookies, session.NewTerminalPrompter(), session.OptionsFromConfig(cfg), log)
	sess.OnTransition = func(from, to session.State) {
		ui.PrintInfo("Session", to.String())
	}
	if err := sess.Establish(ctx); err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Logged in as @%s, session stored", cfg.Session.Username))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	_, cookies, err := authSetup(cmd)
	if err != nil {
		return err
	}
	if err := cookies.Delete(args[0]); err != nil {
		return err
	}
	ui.PrintSuccess("Cookies removed for " + args[0])
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, cookies, err := authSetup(cmd)
	if err != nil {
		return err
	}
	names, err := cookies.List()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintln(out, "No stored sessions. Use 'igreels auth login' or 'igreels auth import'.")
		return nil
	}

	now := time.Now()
	for i, name := range names {
		fmt.Fprintf(out, "%d. %s\n", i+1, name)
		set, err := cookies.Load(name)
		if err != nil {
			fmt.Fprintf(out, "   unreadable: %v\n", err)
			continue
		}
		if c, ok := set.Get(auth.SessionCookieName); ok {
			fmt.Fprintf(out, "   sessionid: %s\n", auth.MaskValue(c.Value))
		}
		status := "fresh"
		if set.Stale(now, cfg.Session.MaxAge) {
			status = "stale, will log in again"
		}
		fmt.Fprintf(out, "   saved: %s (%s, %d cookies)\n",
			set.SavedAt.Format("2006-01-02 15:04:05"), status, set.Len())
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	_, cookies, err := authSetup(cmd)
	if err != nil {
		return err
	}

	var data []byte
	if args[0] == "-" {
		if data, err = io.ReadAll(os.Stdin); err != nil {
			return err
		}
	} else if data, err = os.ReadFile(args[0]); err != nil {
		return err
	}

	list, err := auth.ParseCookies(data)
	if err != nil {
		return err
	}
	set := &models.CookieSet{Cookies: list, SavedAt: time.Now()}
	if !auth.Persistable(set) {
		return fmt.Errorf("%w: export the cookies while logged in", auth.ErrIncompleteCookies)
	}
	if err := cookies.Save(importUser, set); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Imported %d cookies for %s", len(list), importUser))
	return nil
}
