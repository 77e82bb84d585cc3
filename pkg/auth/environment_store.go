package auth

import (
	"os"

	"igreels/pkg/config"
	"igreels/pkg/models"
)

// EnvironmentStore reads a cookie list from an environment variable. It
// serves every username and cannot be written.
type EnvironmentStore struct {
	variable string
	lookup   func(string) (string, bool)
}

// NewEnvironmentStore reads from variable, or INSTAGRAM_SESSION_COOKIES
// when empty.
func NewEnvironmentStore(variable string) *EnvironmentStore {
	if variable == "" {
		variable = config.EnvSessionCookies
	}
	return &EnvironmentStore{variable: variable, lookup: os.LookupEnv}
}

func (e *EnvironmentStore) Name() string { return "env:" + e.variable }

// Load parses the variable. The set has no SavedAt and is never stale.
func (e *EnvironmentStore) Load(username string) (*models.CookieSet, error) {
	raw, ok := e.lookup(e.variable)
	if !ok || raw == "" {
		return nil, ErrCookiesNotFound
	}
	cookies, err := ParseCookies([]byte(raw))
	if err != nil {
		return nil, err
	}
	if len(cookies) == 0 {
		return nil, ErrCookiesNotFound
	}
	return &models.CookieSet{Cookies: cookies}, nil
}

func (e *EnvironmentStore) Save(username string, set *models.CookieSet) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) List() ([]string, error) {
	return nil, nil
}
