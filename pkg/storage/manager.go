package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Manager writes diagnostic screenshots into one directory.
type Manager struct {
	outputDir string
	count     int
	mu        sync.Mutex
}

// NewManager creates the directory if needed and counts the screenshots
// already in it.
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manager := &Manager{outputDir: outputDir}
	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}
	return manager, nil
}

func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".png" {
			m.count++
		}
	}
	return nil
}

// ScreenshotName is error_{account}_{shortcode}_{unix}.png with unsafe
// characters replaced.
func ScreenshotName(account, shortcode string, at time.Time) string {
	return fmt.Sprintf("error_%s_%s_%d.png", safeName(account), safeName(shortcode), at.Unix())
}

func safeName(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}

// ErrNotPNG is returned for screenshot bytes that are not a PNG image.
var ErrNotPNG = errors.New("screenshot is not a PNG image")

// IsPNG reports whether data starts with a well-formed PNG header.
func IsPNG(data []byte) bool {
	_, err := png.DecodeConfig(bytes.NewReader(data))
	return err == nil
}

// SaveScreenshot writes image atomically and returns its path. Only PNG
// data is accepted since the file is named .png.
func (m *Manager) SaveScreenshot(account, shortcode string, image []byte, at time.Time) (string, error) {
	if !IsPNG(image) {
		return "", ErrNotPNG
	}
	path := filepath.Join(m.outputDir, ScreenshotName(account, shortcode, at))
	if err := writeAtomic(path, image, 0644); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.count++
	m.mu.Unlock()
	return path, nil
}

// Dir returns the output directory path
func (m *Manager) Dir() string {
	return m.outputDir
}

// Count returns the number of screenshots in the directory
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// writeAtomic writes through a temp file and renames it into place.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpName, perm)
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
