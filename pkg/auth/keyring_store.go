package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/zalando/go-keyring"

	"igreels/pkg/models"
)

const (
	keyringPrefix = "cookies_"
	// keyringIndex lists the saved accounts, since go-keyring cannot
	// enumerate entries.
	keyringIndex = "_accounts"
)

// KeyringStore keeps cookie sets in the system keychain.
type KeyringStore struct {
	service string
}

// NewKeyringStore checks that the keychain is reachable.
func NewKeyringStore(service string) (*KeyringStore, error) {
	if service == "" {
		service = "igreels"
	}
	testKey := "test_availability"
	if err := keyring.Set(service, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(service, testKey)

	return &KeyringStore{service: service}, nil
}

func (k *KeyringStore) Name() string { return "keyring" }

func (k *KeyringStore) Load(username string) (*models.CookieSet, error) {
	data, err := keyring.Get(k.service, keyringPrefix+fileKey(username))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrCookiesNotFound
		}
		return nil, fmt.Errorf("failed to read keyring: %w", err)
	}

	var set models.CookieSet
	if err := json.Unmarshal([]byte(data), &set); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cookie set: %w", err)
	}
	return &set, nil
}

func (k *KeyringStore) Save(username string, set *models.CookieSet) error {
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to marshal cookie set: %w", err)
	}
	key := fileKey(username)
	if err := keyring.Set(k.service, keyringPrefix+key, string(data)); err != nil {
		return fmt.Errorf("failed to write keyring: %w", err)
	}
	return k.updateIndex(key, true)
}

func (k *KeyringStore) Delete(username string) error {
	key := fileKey(username)
	if err := keyring.Delete(k.service, keyringPrefix+key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrCookiesNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return k.updateIndex(key, false)
}

func (k *KeyringStore) List() ([]string, error) {
	data, err := keyring.Get(k.service, keyringIndex)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (k *KeyringStore) updateIndex(key string, present bool) error {
	names, err := k.List()
	if err != nil {
		return err
	}
	set := make(map[string]bool, len(names)+1)
	for _, n := range names {
		set[n] = true
	}
	if present {
		set[key] = true
	} else {
		delete(set, key)
	}
	names = names[:0]
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)

	data, _ := json.Marshal(names)
	return keyring.Set(k.service, keyringIndex, string(data))
}
