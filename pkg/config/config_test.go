package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Limits.MaxPosts != 50 {
		t.Errorf("Expected default max posts to be 50, got %d", config.Limits.MaxPosts)
	}

	if config.Limits.MaxScrollAttempts != 25 {
		t.Errorf("Expected default max scroll attempts to be 25, got %d", config.Limits.MaxScrollAttempts)
	}

	if config.Limits.SelectorTimeout != 20*time.Second {
		t.Errorf("Expected default selector timeout to be 20s, got %v", config.Limits.SelectorTimeout)
	}

	if config.Output.ResultsFile != "reels_results.json" {
		t.Errorf("Expected default results file to be reels_results.json, got %s", config.Output.ResultsFile)
	}

	if config.Session.CookieEnv != EnvSessionCookies {
		t.Errorf("Expected cookie env to be %s, got %s", EnvSessionCookies, config.Session.CookieEnv)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(EnvUsername, "operator")
	t.Setenv(EnvPassword, "hunter2")
	t.Setenv(EnvProxyListFile, "/tmp/proxies.txt")
	t.Setenv("IGREELS_HEADLESS", "false")
	t.Setenv("IGREELS_MAX_POSTS", "5")
	t.Setenv("IGREELS_SELECTOR_TIMEOUT", "7s")
	t.Setenv("IGREELS_OUTPUT", "/tmp/out.json")
	t.Setenv("IGREELS_NOTIFICATIONS_ENABLED", "false")
	t.Setenv("IGREELS_LOG_LEVEL", "debug")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Session.Username != "operator" || config.Session.Password != "hunter2" {
		t.Errorf("Expected credentials from environment, got %q", config.Session.Username)
	}

	if config.Browser.ProxyListFile != "/tmp/proxies.txt" {
		t.Errorf("Expected proxy list file from environment, got %s", config.Browser.ProxyListFile)
	}

	if config.Browser.Headless {
		t.Error("Expected headless to be disabled")
	}

	if config.Limits.MaxPosts != 5 {
		t.Errorf("Expected max posts to be 5, got %d", config.Limits.MaxPosts)
	}

	if config.Limits.SelectorTimeout != 7*time.Second {
		t.Errorf("Expected selector timeout to be 7s, got %v", config.Limits.SelectorTimeout)
	}

	if config.Output.ResultsFile != "/tmp/out.json" {
		t.Errorf("Expected results file to be /tmp/out.json, got %s", config.Output.ResultsFile)
	}

	if config.Notifications.Enabled {
		t.Error("Expected notifications to be disabled")
	}

	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvInvalidNumber(t *testing.T) {
	t.Setenv("IGREELS_MAX_POSTS", "many")

	config := DefaultConfig()
	err := config.LoadFromEnv()
	if err == nil {
		t.Fatal("Expected error for non-numeric max posts")
	}
	if !strings.Contains(err.Error(), "IGREELS_MAX_POSTS") {
		t.Errorf("Expected error to name the variable, got %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
browser:
  headless: false
  proxy: http://10.0.0.1:3128
session:
  username: fileuser
  cookie_store: keyring
limits:
  max_posts: 12
  scroll_pause: 500ms
pacing:
  post_delay: 1s
  account_delay: 3s
output:
  results_file: results.json
logging:
  level: warn
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	config := DefaultConfig()
	if err := config.LoadFromFile(configPath); err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}

	if config.Browser.Headless {
		t.Error("Expected headless false from file")
	}
	if config.Browser.Proxy != "http://10.0.0.1:3128" {
		t.Errorf("Expected proxy from file, got %s", config.Browser.Proxy)
	}
	if config.Session.Username != "fileuser" || config.Session.CookieStore != "keyring" {
		t.Errorf("Unexpected session config: %+v", config.Session)
	}
	if config.Limits.MaxPosts != 12 {
		t.Errorf("Expected max posts 12, got %d", config.Limits.MaxPosts)
	}
	if config.Limits.ScrollPause != 500*time.Millisecond {
		t.Errorf("Expected scroll pause 500ms, got %v", config.Limits.ScrollPause)
	}
	if config.Pacing.AccountDelay != 3*time.Second {
		t.Errorf("Expected account delay 3s, got %v", config.Pacing.AccountDelay)
	}
	// untouched values keep their defaults
	if config.Limits.MaxScrollAttempts != 25 {
		t.Errorf("Expected default max scroll attempts, got %d", config.Limits.MaxScrollAttempts)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	config := DefaultConfig()
	if err := config.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing explicit config file")
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()
	config.MergeCommandLineFlags(map[string]interface{}{
		"username":  "flaguser",
		"headless":  false,
		"max-posts": 5,
		"grid":      "posts",
		"output":    "nasa.json",
		"log-level": "error",
		"proxy":     "",
	})

	if config.Session.Username != "flaguser" {
		t.Errorf("Expected username from flags, got %s", config.Session.Username)
	}
	if config.Browser.Headless {
		t.Error("Expected headless false from flags")
	}
	if config.Limits.MaxPosts != 5 {
		t.Errorf("Expected max posts 5, got %d", config.Limits.MaxPosts)
	}
	if config.Limits.Grid != "posts" {
		t.Errorf("Expected posts grid, got %s", config.Limits.Grid)
	}
	if config.Output.ResultsFile != "nasa.json" {
		t.Errorf("Expected output nasa.json, got %s", config.Output.ResultsFile)
	}
	if config.Browser.Proxy != "" {
		t.Errorf("Expected empty proxy flag to be ignored, got %s", config.Browser.Proxy)
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	config := DefaultConfig()
	config.Session.Username = "saved"
	config.Session.Password = "never-written"
	config.Limits.MaxPosts = 9

	if err := config.Save(path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read saved config: %v", err)
	}
	if strings.Contains(string(data), "never-written") {
		t.Error("Password must not be written to the config file")
	}

	loaded := DefaultConfig()
	if err := loaded.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to reload config: %v", err)
	}
	if loaded.Session.Username != "saved" || loaded.Limits.MaxPosts != 9 {
		t.Errorf("Reloaded config mismatch: %+v", loaded.Session)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("limits:\n  max_posts: 20\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IGREELS_MAX_POSTS", "30")

	config, err := Load(path, map[string]interface{}{"max-posts": 40})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Limits.MaxPosts != 40 {
		t.Errorf("Expected flags to win, got %d", config.Limits.MaxPosts)
	}

	config, err = Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Limits.MaxPosts != 30 {
		t.Errorf("Expected env to beat file, got %d", config.Limits.MaxPosts)
	}
}
