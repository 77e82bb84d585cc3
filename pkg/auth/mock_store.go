package auth

import (
	"sort"
	"sync"

	"igreels/pkg/models"
)

// MockStore is an in-memory CookieStore for tests.
type MockStore struct {
	mu   sync.Mutex
	sets map[string]*models.CookieSet

	// Error injection
	LoadError   error
	SaveError   error
	DeleteError error

	saves int
}

// NewMockStore returns an empty store.
func NewMockStore() *MockStore {
	return &MockStore{sets: make(map[string]*models.CookieSet)}
}

// NewMockManager returns a manager over a single mock store.
func NewMockManager() (*Manager, *MockStore) {
	m := NewMockStore()
	return NewManager(m), m
}

func (m *MockStore) Name() string { return "mock" }

func (m *MockStore) Load(username string) (*models.CookieSet, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[fileKey(username)]
	if !ok {
		return nil, ErrCookiesNotFound
	}
	return copySet(set), nil
}

func (m *MockStore) Save(username string, set *models.CookieSet) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[fileKey(username)] = copySet(set)
	m.saves++
	return nil
}

func (m *MockStore) Delete(username string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fileKey(username)
	if _, ok := m.sets[key]; !ok {
		return ErrCookiesNotFound
	}
	delete(m.sets, key)
	return nil
}

func (m *MockStore) List() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.sets))
	for n := range m.sets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Put seeds a set without counting it as a save.
func (m *MockStore) Put(username string, set *models.CookieSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[fileKey(username)] = copySet(set)
}

// Saves returns how many times Save succeeded.
func (m *MockStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func copySet(set *models.CookieSet) *models.CookieSet {
	if set == nil {
		return nil
	}
	return &models.CookieSet{
		Cookies: append([]models.SessionCookie(nil), set.Cookies...),
		SavedAt: set.SavedAt,
	}
}
