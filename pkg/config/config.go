package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables shared with exported session tooling.
const (
	EnvUsername       = "INSTAGRAM_USERNAME"
	EnvPassword       = "INSTAGRAM_PASSWORD"
	EnvSessionCookies = "INSTAGRAM_SESSION_COOKIES"
	EnvProxyListFile  = "PROXY_LIST_FILE"
)

// Config holds all configuration options for a scraping run. It is
// built once by Load and passed down; nothing mutates it afterwards.
type Config struct {
	// Browser launch options
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Login and cookie persistence
	Session SessionConfig `yaml:"session" json:"session"`

	// Discovery and extraction limits
	Limits LimitsConfig `yaml:"limits" json:"limits"`

	// Delays between navigations
	Pacing PacingConfig `yaml:"pacing" json:"pacing"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Processed-post database
	Store StoreConfig `yaml:"store" json:"store"`

	// Resumable runs
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`

	// Recurring runs
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// BrowserConfig holds browser launch options
type BrowserConfig struct {
	Headless       bool   `yaml:"headless" json:"headless"`
	ViewportWidth  int    `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height" json:"viewport_height"`
	UserAgent      string `yaml:"user_agent" json:"user_agent"`
	Locale         string `yaml:"locale" json:"locale"`
	Timezone       string `yaml:"timezone" json:"timezone"`
	ExecPath       string `yaml:"exec_path" json:"exec_path"`
	// Proxy is scheme://host:port. Credentials in the address are dropped.
	Proxy         string `yaml:"proxy" json:"proxy"`
	ProxyListFile string `yaml:"proxy_list_file" json:"proxy_list_file"`
	LaunchRetries int    `yaml:"launch_retries" json:"launch_retries"`
}

// SessionConfig holds login and cookie persistence settings
type SessionConfig struct {
	Username string `yaml:"username" json:"username"`
	// Password is only read from the environment or flags
	Password          string        `yaml:"-" json:"-"`
	CookieStore       string        `yaml:"cookie_store" json:"cookie_store"`
	CookieDir         string        `yaml:"cookie_dir" json:"cookie_dir"`
	CookieEnv         string        `yaml:"cookie_env" json:"cookie_env"`
	KeyringService    string        `yaml:"keyring_service" json:"keyring_service"`
	MaxAge            time.Duration `yaml:"max_age" json:"max_age"`
	TwoFactorAttempts int           `yaml:"two_factor_attempts" json:"two_factor_attempts"`
	LoginTimeout      time.Duration `yaml:"login_timeout" json:"login_timeout"`
	PollInterval      time.Duration `yaml:"poll_interval" json:"poll_interval"`
	TypingDelay       time.Duration `yaml:"typing_delay" json:"typing_delay"`
}

// LimitsConfig holds discovery and extraction limits
type LimitsConfig struct {
	MaxPosts          int           `yaml:"max_posts" json:"max_posts"`
	MaxScrollAttempts int           `yaml:"max_scroll_attempts" json:"max_scroll_attempts"`
	StallLimit        int           `yaml:"stall_limit" json:"stall_limit"`
	ScrollPause       time.Duration `yaml:"scroll_pause" json:"scroll_pause"`
	SelectorTimeout   time.Duration `yaml:"selector_timeout" json:"selector_timeout"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	NavigationRetries int           `yaml:"navigation_retries" json:"navigation_retries"`
	SettleDelay       time.Duration `yaml:"settle_delay" json:"settle_delay"`
	Grid              string        `yaml:"grid" json:"grid"`
}

// PacingConfig holds delays inserted between navigations
type PacingConfig struct {
	PostDelay    time.Duration `yaml:"post_delay" json:"post_delay"`
	AccountDelay time.Duration `yaml:"account_delay" json:"account_delay"`
	Jitter       float64       `yaml:"jitter" json:"jitter"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	NavigationsPerMinute int           `yaml:"navigations_per_minute" json:"navigations_per_minute"`
	BurstSize            int           `yaml:"burst_size" json:"burst_size"`
	FailureThreshold     int           `yaml:"failure_threshold" json:"failure_threshold"`
	Window               time.Duration `yaml:"window" json:"window"`
	OnSuspected          string        `yaml:"on_suspected" json:"on_suspected"`
	Cooldown             time.Duration `yaml:"cooldown" json:"cooldown"`
	BackoffMultiplier    float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	RetryDelay           time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// OutputConfig holds output file configuration
type OutputConfig struct {
	ResultsFile    string `yaml:"results_file" json:"results_file"`
	ScreenshotsDir string `yaml:"screenshots_dir" json:"screenshots_dir"`
	Screenshots    bool   `yaml:"screenshots" json:"screenshots"`
	WritePartial   bool   `yaml:"write_partial" json:"write_partial"`
	Pretty         bool   `yaml:"pretty" json:"pretty"`
}

// StoreConfig holds processed-post database settings
type StoreConfig struct {
	Database      string `yaml:"database" json:"database"`
	SkipProcessed bool   `yaml:"skip_processed" json:"skip_processed"`
	RetentionDays int    `yaml:"retention_days" json:"retention_days"`
}

// CheckpointConfig holds resumable run settings
type CheckpointConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Directory string `yaml:"directory" json:"directory"`
}

// ScheduleConfig holds recurring run settings
type ScheduleConfig struct {
	Cron       string        `yaml:"cron" json:"cron"`
	Timezone   string        `yaml:"timezone" json:"timezone"`
	RunTimeout time.Duration `yaml:"run_timeout" json:"run_timeout"`
	Accounts   []string      `yaml:"accounts" json:"accounts"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	OnComplete       bool   `yaml:"on_complete" json:"on_complete"`
	OnError          bool   `yaml:"on_error" json:"on_error"`
	OnRateLimit      bool   `yaml:"on_rate_limit" json:"on_rate_limit"`
	NotificationType string `yaml:"notification_type" json:"notification_type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:       true,
			ViewportWidth:  1280,
			ViewportHeight: 900,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			Locale:         "en-US",
			Timezone:       "",
			LaunchRetries:  2,
		},
		Session: SessionConfig{
			CookieStore:       "file",
			CookieDir:         filepath.Join(getDataDir(), "cookies"),
			CookieEnv:         EnvSessionCookies,
			KeyringService:    "igreels",
			MaxAge:            72 * time.Hour,
			TwoFactorAttempts: 3,
			LoginTimeout:      30 * time.Second,
			PollInterval:      500 * time.Millisecond,
			TypingDelay:       120 * time.Millisecond,
		},
		Limits: LimitsConfig{
			MaxPosts:          50,
			MaxScrollAttempts: 25,
			StallLimit:        3,
			ScrollPause:       2 * time.Second,
			SelectorTimeout:   20 * time.Second,
			NavigationTimeout: 30 * time.Second,
			NavigationRetries: 3,
			SettleDelay:       3 * time.Second,
			Grid:              "reels",
		},
		Pacing: PacingConfig{
			PostDelay:    6 * time.Second,
			AccountDelay: 20 * time.Second,
			Jitter:       0.35,
		},
		RateLimit: RateLimitConfig{
			NavigationsPerMinute: 12,
			BurstSize:            2,
			FailureThreshold:     4,
			Window:               2 * time.Minute,
			OnSuspected:          "warn",
			Cooldown:             5 * time.Minute,
			BackoffMultiplier:    2.0,
			RetryDelay:           2 * time.Second,
		},
		Output: OutputConfig{
			ResultsFile:    "reels_results.json",
			ScreenshotsDir: "screenshots",
			Screenshots:    true,
			WritePartial:   true,
			Pretty:         true,
		},
		Store: StoreConfig{
			Database:      filepath.Join(getDataDir(), "igreels.db"),
			SkipProcessed: false,
			RetentionDays: 30,
		},
		Checkpoint: CheckpointConfig{
			Enabled:   true,
			Directory: filepath.Join(getDataDir(), "checkpoints"),
		},
		Schedule: ScheduleConfig{
			Cron:       "0 */6 * * *",
			Timezone:   "Local",
			RunTimeout: 2 * time.Hour,
		},
		Notifications: NotificationConfig{
			Enabled:          true,
			OnComplete:       true,
			OnError:          true,
			OnRateLimit:      true,
			NotificationType: "terminal",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			File:       "",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	// Credentials use the names shared with other session tooling
	if username := os.Getenv(EnvUsername); username != "" {
		c.Session.Username = username
	}
	if password := os.Getenv(EnvPassword); password != "" {
		c.Session.Password = password
	}
	if list := os.Getenv(EnvProxyListFile); list != "" {
		c.Browser.ProxyListFile = list
	}

	// Browser
	if v := os.Getenv("IGREELS_HEADLESS"); v != "" {
		c.Browser.Headless = parseBool(v)
	}
	if v := os.Getenv("IGREELS_PROXY"); v != "" {
		c.Browser.Proxy = v
	}
	if v := os.Getenv("IGREELS_USER_AGENT"); v != "" {
		c.Browser.UserAgent = v
	}
	if v := os.Getenv("IGREELS_CHROME_PATH"); v != "" {
		c.Browser.ExecPath = v
	}

	// Session
	if v := os.Getenv("IGREELS_COOKIE_STORE"); v != "" {
		c.Session.CookieStore = v
	}
	if v := os.Getenv("IGREELS_COOKIE_DIR"); v != "" {
		c.Session.CookieDir = v
	}

	// Limits
	if v := os.Getenv("IGREELS_MAX_POSTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGREELS_MAX_POSTS: %w", err))
		} else if n > 0 {
			c.Limits.MaxPosts = n
		}
	}
	if v := os.Getenv("IGREELS_MAX_SCROLLS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGREELS_MAX_SCROLLS: %w", err))
		} else if n > 0 {
			c.Limits.MaxScrollAttempts = n
		}
	}
	if v := os.Getenv("IGREELS_SELECTOR_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGREELS_SELECTOR_TIMEOUT: %w", err))
		} else {
			c.Limits.SelectorTimeout = d
		}
	}
	if v := os.Getenv("IGREELS_POST_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGREELS_POST_DELAY: %w", err))
		} else {
			c.Pacing.PostDelay = d
		}
	}

	// Output
	if v := os.Getenv("IGREELS_OUTPUT"); v != "" {
		c.Output.ResultsFile = v
	}
	if v := os.Getenv("IGREELS_DATABASE"); v != "" {
		c.Store.Database = v
	}

	// Notifications
	if v := os.Getenv("IGREELS_NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = parseBool(v)
	}

	// Logging level
	if v := os.Getenv("IGREELS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("IGREELS_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"igreels.yaml",
		".igreels.yaml",
		".igreels.yml",
		filepath.Join(getConfigDir(), "config.yaml"),
		filepath.Join(home, ".igreels.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Browser
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		errs = append(errs, errors.New("viewport dimensions must be positive"))
	}
	if c.Browser.Proxy != "" {
		u, err := url.Parse(c.Browser.Proxy)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("proxy must be scheme://host:port, got %q", c.Browser.Proxy))
		}
	}
	if c.Browser.LaunchRetries < 0 {
		errs = append(errs, errors.New("launch retries cannot be negative"))
	}

	// Session
	validStores := map[string]bool{"file": true, "keyring": true, "encrypted": true, "env": true}
	if !validStores[strings.ToLower(c.Session.CookieStore)] {
		errs = append(errs, fmt.Errorf("invalid cookie store %q", c.Session.CookieStore))
	}
	if c.Session.TwoFactorAttempts <= 0 {
		errs = append(errs, errors.New("two-factor attempts must be positive"))
	}
	if c.Session.LoginTimeout <= 0 {
		errs = append(errs, errors.New("login timeout must be positive"))
	}
	if c.Session.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}

	// Limits
	if c.Limits.MaxPosts <= 0 {
		errs = append(errs, errors.New("max posts must be positive"))
	}
	if c.Limits.MaxScrollAttempts <= 0 {
		errs = append(errs, errors.New("max scroll attempts must be positive"))
	}
	if c.Limits.StallLimit <= 0 {
		errs = append(errs, errors.New("stall limit must be positive"))
	}
	if c.Limits.SelectorTimeout <= 0 || c.Limits.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	if c.Limits.NavigationRetries <= 0 {
		errs = append(errs, errors.New("navigation retries must be positive"))
	}
	if c.Limits.Grid != "reels" && c.Limits.Grid != "posts" {
		errs = append(errs, fmt.Errorf("grid must be reels or posts, got %q", c.Limits.Grid))
	}

	// Pacing
	if c.Pacing.PostDelay < 0 || c.Pacing.AccountDelay < 0 {
		errs = append(errs, errors.New("pacing delays cannot be negative"))
	}
	if c.Pacing.Jitter < 0 || c.Pacing.Jitter > 1 {
		errs = append(errs, errors.New("jitter must be between 0 and 1"))
	}

	// Rate limiting
	if c.RateLimit.NavigationsPerMinute < 0 {
		errs = append(errs, errors.New("navigations per minute cannot be negative"))
	}
	if c.RateLimit.FailureThreshold <= 0 {
		errs = append(errs, errors.New("failure threshold must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate limit window must be positive"))
	}
	validPolicies := map[string]bool{"warn": true, "pause": true, "stop": true}
	if !validPolicies[strings.ToLower(c.RateLimit.OnSuspected)] {
		errs = append(errs, fmt.Errorf("invalid rate limit policy %q", c.RateLimit.OnSuspected))
	}

	// Output
	if c.Output.ResultsFile == "" {
		errs = append(errs, errors.New("results file is required"))
	}

	// Store
	if c.Store.RetentionDays < 0 {
		errs = append(errs, errors.New("retention days cannot be negative"))
	}

	// Validate logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	// Validate notification type
	validNotifTypes := map[string]bool{
		"terminal": true, "desktop": true, "none": true,
	}
	if !validNotifTypes[strings.ToLower(c.Notifications.NotificationType)] {
		errs = append(errs, errors.New("invalid notification type"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if username, ok := flags["username"].(string); ok && username != "" {
		c.Session.Username = username
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if proxy, ok := flags["proxy"].(string); ok && proxy != "" {
		c.Browser.Proxy = proxy
	}
	if maxPosts, ok := flags["max-posts"].(int); ok && maxPosts > 0 {
		c.Limits.MaxPosts = maxPosts
	}
	if grid, ok := flags["grid"].(string); ok && grid != "" {
		c.Limits.Grid = grid
	}
	if output, ok := flags["output"].(string); ok && output != "" {
		c.Output.ResultsFile = output
	}
	if store, ok := flags["cookie-store"].(string); ok && store != "" {
		c.Session.CookieStore = store
	}
	if skip, ok := flags["skip-processed"].(bool); ok {
		c.Store.SkipProcessed = skip
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile, ok := flags["log-file"].(string); ok && logFile != "" {
		c.Logging.File = logFile
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(getConfigDir(), ".env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// DefaultPath returns the location `config init` writes to.
func DefaultPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}
