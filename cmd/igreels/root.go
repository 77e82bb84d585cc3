package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"igreels/pkg/config"
	"igreels/pkg/logger"
	"igreels/pkg/ui"
)

var (
	// Version information
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFile    string
	quiet      bool
	verbose    bool
	headless   bool
	proxyAddr  string
)

var rootCmd = &cobra.Command{
	Use:   "igreels",
	Short: "Extract reel and post metadata from Instagram accounts",
	Long: `igreels drives a real browser through Instagram, logs in once, and
collects the caption, date and type of the most recent reels of each
account in a list.

Results are written as JSON keyed by account, in the order given.
Session cookies are persisted so later runs skip the login form.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.SetQuietMode(true)
		}
		if cmd.Name() == "scrape" && !quiet {
			ui.PrintLogo()
		}
	},
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "config file (default: ./igreels.yaml or "+config.DefaultPath()+")")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&logFile, "log-file", "", "also write logs to this file (rotated)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	pf.BoolVarP(&verbose, "verbose", "v", false, "print every post and debug logs")
	pf.BoolVar(&headless, "headless", true, "run the browser without a window")
	pf.StringVar(&proxyAddr, "proxy", "", "proxy as scheme://host:port")

	rootCmd.SetVersionTemplate(`igreels {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig layers the persistent flags and extra command flags over
// file and environment configuration.
func loadConfig(cmd *cobra.Command, extra map[string]interface{}) (*config.Config, error) {
	flags := make(map[string]interface{}, len(extra)+4)
	for k, v := range extra {
		flags[k] = v
	}
	if cmd.Flags().Changed("headless") {
		flags["headless"] = headless
	}
	if proxyAddr != "" {
		flags["proxy"] = proxyAddr
	}
	switch {
	case logLevel != "":
		flags["log-level"] = logLevel
	case verbose:
		flags["log-level"] = "debug"
	case quiet:
		flags["log-level"] = "error"
	}
	if logFile != "" {
		flags["log-file"] = logFile
	}
	return config.Load(configFile, flags)
}

// setupLogger installs the global logger writing console output to w.
func setupLogger(cfg *config.Config, w io.Writer) (logger.Logger, error) {
	l, err := logger.NewWithWriter(&cfg.Logging, w)
	if err != nil {
		return nil, err
	}
	logger.SetLogger(l)
	return l, nil
}
