package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"igreels/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{
			name:    "valid config with info level",
			cfg:     &config.LoggingConfig{Level: "info"},
			wantErr: false,
		},
		{
			name:    "valid config with debug level",
			cfg:     &config.LoggingConfig{Level: "debug"},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			cfg:     &config.LoggingConfig{Level: "invalid"},
			wantErr: true,
		},
		{
			name: "config with rotating file output",
			cfg: &config.LoggingConfig{
				Level:   "info",
				File:    filepath.Join(t.TempDir(), "logs", "igreels.log"),
				MaxSize: 1,
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}

	l.WithField("account", "nasa").WithError(errors.New("boom")).Warn("discovery stopped")

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["account"] != "nasa" {
		t.Errorf("expected account field, got %v", entry["account"])
	}
	if entry["error"] != "boom" {
		t.Errorf("expected error field, got %v", entry["error"])
	}
	if entry["level"] != "warn" {
		t.Errorf("expected warn level, got %v", entry["level"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	l.Info("hidden")
	l.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn message should be written")
	}
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent, _ := NewWithWriter(&config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	_ = parent.WithField("child", true)
	parent.Info("parent only")

	if strings.Contains(buf.String(), "child") {
		t.Error("parent logger picked up child field")
	}
}

func TestFileOutputWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	l, err := NewWithWriter(&config.LoggingConfig{Level: "info", File: path, Format: "json"}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	l.Info("to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file content = %q", data)
	}
}

func TestDomainHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogSessionTransition(tl, "operator", "verifying", "authenticated")
	LogNavigation(tl, "https://www.instagram.com/", 1500*time.Millisecond, nil)
	LogExtraction(tl, "nasa", "C0de", "", "extraction", errors.New("no data"))
	LogAccountProgress(tl, "nasa", 2, 4)
	LogRateLimitSuspected(tl, 4, time.Minute, "warn")

	if !tl.HasMessage("Session state changed") {
		t.Error("missing session transition")
	}

	errs := tl.GetMessagesByLevel("ERROR")
	if len(errs) != 1 {
		t.Fatalf("expected one error entry, got %d", len(errs))
	}
	if errs[0].Fields["error_kind"] != "extraction" || errs[0].Fields["shortcode"] != "C0de" {
		t.Errorf("unexpected side-channel fields: %v", errs[0].Fields)
	}
	if errs[0].Error != "no data" {
		t.Errorf("expected captured error, got %q", errs[0].Error)
	}

	warns := tl.GetMessagesByLevel("WARN")
	if len(warns) != 1 || warns[0].Fields["action"] != "rate_limit_suspected" {
		t.Errorf("unexpected warnings: %+v", warns)
	}
}

func TestTestLoggerSharesCapture(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("account", "a")
	child.Info("from child")

	msgs := tl.GetMessages()
	if len(msgs) != 1 || msgs[0].Fields["account"] != "a" {
		t.Fatalf("expected child message in parent capture, got %+v", msgs)
	}

	tl.Clear()
	if len(tl.GetMessages()) != 0 {
		t.Error("Clear did not reset messages")
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("k", "v").WithError(errors.New("x")).Info("ignored")
	if l.GetZerolog() == nil {
		t.Error("nop logger should expose a usable zerolog")
	}
}
