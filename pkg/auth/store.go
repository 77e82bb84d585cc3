package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"igreels/pkg/config"
	"igreels/pkg/models"
)

// CookieStore persists one cookie set per account.
type CookieStore interface {
	// Load returns the set saved for username, or ErrCookiesNotFound.
	Load(username string) (*models.CookieSet, error)
	// Save replaces the set saved for username.
	Save(username string, set *models.CookieSet) error
	// Delete removes the set saved for username.
	Delete(username string) error
	// List returns the usernames with a saved set.
	List() ([]string, error)
	// Name identifies the backing in logs.
	Name() string
}

// Errors
var (
	ErrCookiesNotFound   = errors.New("cookies not found")
	ErrIncompleteCookies = errors.New("cookie set has no sessionid")
	ErrStoreUnavailable  = errors.New("cookie store unavailable")
)

// SessionCookieName is the cookie that proves an authenticated session.
const SessionCookieName = "sessionid"

// Persistable reports whether a set is complete enough to be saved.
func Persistable(set *models.CookieSet) bool {
	c, ok := set.Get(SessionCookieName)
	return ok && c.Value != ""
}

// Manager chains stores: Load returns the first hit, Save writes to the
// first store that accepts writes.
type Manager struct {
	stores []CookieStore
}

// NewManager chains the given stores in order.
func NewManager(stores ...CookieStore) *Manager {
	return &Manager{stores: stores}
}

// NewManagerFromConfig builds the chain for the configured backing. The
// environment slot comes last: it seeds the first login, and a set saved
// after that takes precedence over it.
func NewManagerFromConfig(cfg config.SessionConfig) (*Manager, error) {
	env := NewEnvironmentStore(cfg.CookieEnv)
	var primary CookieStore

	switch strings.ToLower(cfg.CookieStore) {
	case "env":
		return NewManager(env), nil
	case "keyring":
		ks, err := NewKeyringStore(cfg.KeyringService)
		if err != nil {
			// Headless hosts often have no secret service.
			fs, ferr := NewFileStore(cfg.CookieDir)
			if ferr != nil {
				return nil, errors.Join(err, ferr)
			}
			primary = fs
			break
		}
		primary = ks
	case "encrypted":
		es, err := NewEncryptedFileStore(filepath.Join(cfg.CookieDir, "cookies.enc"), "")
		if err != nil {
			return nil, err
		}
		primary = es
	default:
		fs, err := NewFileStore(cfg.CookieDir)
		if err != nil {
			return nil, err
		}
		primary = fs
	}

	return NewManager(primary, env), nil
}

// Stores returns the chain.
func (m *Manager) Stores() []CookieStore {
	return m.stores
}

// Load returns the first set found for username.
func (m *Manager) Load(username string) (*models.CookieSet, error) {
	var errs []error
	for _, s := range m.stores {
		set, err := s.Load(username)
		if err == nil && set.Len() > 0 {
			return set, nil
		}
		if err != nil && !errors.Is(err, ErrCookiesNotFound) {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(append([]error{ErrCookiesNotFound}, errs...)...)
	}
	return nil, ErrCookiesNotFound
}

// Save persists a complete set to the first writable store. Sets without
// a session cookie are rejected.
func (m *Manager) Save(username string, set *models.CookieSet) error {
	if !Persistable(set) {
		return ErrIncompleteCookies
	}
	if set.SavedAt.IsZero() {
		set.SavedAt = time.Now()
	}

	var lastErr error
	for _, s := range m.stores {
		err := s.Save(username, set)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrStoreUnavailable
	}
	return fmt.Errorf("failed to save cookies: %w", lastErr)
}

// Delete removes the set for username from every store.
func (m *Manager) Delete(username string) error {
	deleted := false
	var lastErr error
	for _, s := range m.stores {
		err := s.Delete(username)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrCookiesNotFound):
		default:
			lastErr = err
		}
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete cookies: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w for %s", ErrCookiesNotFound, username)
	}
	return nil
}

// List merges the accounts known to every store.
func (m *Manager) List() ([]string, error) {
	seen := make(map[string]bool)
	for _, s := range m.stores {
		names, err := s.List()
		if err != nil {
			continue
		}
		for _, n := range names {
			seen[n] = true
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// MaskValue hides all but the ends of a cookie value.
func MaskValue(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// fileKey turns a username into a safe file name stem.
func fileKey(username string) string {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			return r
		default:
			return '_'
		}
	}, username)
}

// writeFileAtomic writes data to path through a temp file in the same
// directory.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
