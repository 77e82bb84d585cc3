package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"igreels/pkg/models"
)

// FileStore keeps one JSON cookie list per account in a directory. The
// file modification time is the set's SavedAt.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("cookie directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cookie directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) Name() string { return "file" }

// Path returns the file backing username.
func (f *FileStore) Path(username string) string {
	return filepath.Join(f.dir, fileKey(username)+".json")
}

func (f *FileStore) Load(username string) (*models.CookieSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.Path(username)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCookiesNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cookies, err := ParseCookies(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(cookies) == 0 {
		return nil, ErrCookiesNotFound
	}

	set := &models.CookieSet{Cookies: cookies}
	if info, err := os.Stat(path); err == nil {
		set.SavedAt = info.ModTime()
	}
	return set, nil
}

func (f *FileStore) Save(username string, set *models.CookieSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(set.Cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	return writeFileAtomic(f.Path(username), data)
}

func (f *FileStore) Delete(username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.Path(username))
	if os.IsNotExist(err) {
		return ErrCookiesNotFound
	}
	return err
}

func (f *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	return names, nil
}
