package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "igreels"

// ConfigDir returns the per-user configuration directory.
func ConfigDir() string { return getConfigDir() }

// DataDir returns the per-user data directory used for cookies,
// checkpoints and the post database.
func DataDir() string { return getDataDir() }

func getConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support", appName)
		}
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName)
		}
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, appName)
		}
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".config", appName)
		}
	}
	return "." + appName
}

func getDataDir() string {
	switch runtime.GOOS {
	case "darwin", "windows":
		return getConfigDir()
	default:
		// Use XDG_DATA_HOME if set, otherwise ~/.local/share
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, appName)
		}
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".local", "share", appName)
		}
	}
	return "." + appName
}
