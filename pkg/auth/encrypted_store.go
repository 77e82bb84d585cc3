package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"igreels/pkg/models"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000

	// EnvPassphrase overrides the generated passphrase file.
	EnvPassphrase = "IGREELS_PASSPHRASE"
)

// EncryptedFileStore keeps every account's cookie set in one AES-GCM
// encrypted file keyed by a PBKDF2-derived key.
type EncryptedFileStore struct {
	path       string
	passphrase string
	mu         sync.Mutex
}

type encryptedFile struct {
	Salt      string    `json:"salt"`
	Encrypted string    `json:"encrypted"`
	Version   int       `json:"version"`
	Modified  time.Time `json:"modified"`
}

// NewEncryptedFileStore opens the store at path. An empty passphrase is
// read from IGREELS_PASSPHRASE or a generated .passphrase file beside
// the store.
func NewEncryptedFileStore(path, passphrase string) (*EncryptedFileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	if passphrase == "" {
		var err error
		passphrase, err = loadPassphrase(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to get passphrase: %w", err)
		}
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

func (e *EncryptedFileStore) Name() string { return "encrypted" }

func (e *EncryptedFileStore) Load(username string) (*models.CookieSet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sets, _, err := e.read()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCookiesNotFound
		}
		return nil, err
	}
	set, ok := sets[fileKey(username)]
	if !ok {
		return nil, ErrCookiesNotFound
	}
	return &set, nil
}

func (e *EncryptedFileStore) Save(username string, set *models.CookieSet) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sets, salt, err := e.read()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load existing data: %w", err)
	}
	if sets == nil {
		sets = make(map[string]models.CookieSet)
	}
	sets[fileKey(username)] = *set
	return e.write(sets, salt)
}

func (e *EncryptedFileStore) Delete(username string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sets, salt, err := e.read()
	if err != nil {
		if os.IsNotExist(err) {
			return ErrCookiesNotFound
		}
		return err
	}
	key := fileKey(username)
	if _, ok := sets[key]; !ok {
		return ErrCookiesNotFound
	}
	delete(sets, key)

	if len(sets) == 0 {
		return os.Remove(e.path)
	}
	return e.write(sets, salt)
}

func (e *EncryptedFileStore) List() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sets, _, err := e.read()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(sets))
	for n := range sets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (e *EncryptedFileStore) read() (map[string]models.CookieSet, []byte, error) {
	content, err := os.ReadFile(e.path)
	if err != nil {
		return nil, nil, err
	}

	var file encryptedFile
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, nil, fmt.Errorf("failed to parse file: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(file.Salt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(file.Encrypted)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode encrypted data: %w", err)
	}

	plain, err := decrypt(sealed, e.key(salt))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt data: %w", err)
	}

	var sets map[string]models.CookieSet
	if err := json.Unmarshal(plain, &sets); err != nil {
		return nil, nil, fmt.Errorf("failed to parse cookie sets: %w", err)
	}
	return sets, salt, nil
}

func (e *EncryptedFileStore) write(sets map[string]models.CookieSet, salt []byte) error {
	if len(salt) == 0 {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	plain, err := json.Marshal(sets)
	if err != nil {
		return fmt.Errorf("failed to marshal cookie sets: %w", err)
	}
	sealed, err := encrypt(plain, e.key(salt))
	if err != nil {
		return fmt.Errorf("failed to encrypt data: %w", err)
	}

	content, err := json.MarshalIndent(encryptedFile{
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Encrypted: base64.StdEncoding.EncodeToString(sealed),
		Version:   1,
		Modified:  time.Now(),
	}, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(e.path, content)
}

func (e *EncryptedFileStore) key(salt []byte) []byte {
	return pbkdf2.Key([]byte(e.passphrase), salt, iterations, keySize, sha256.New)
}

func loadPassphrase(dir string) (string, error) {
	if pass := os.Getenv(EnvPassphrase); pass != "" {
		return pass, nil
	}

	file := filepath.Join(dir, ".passphrase")
	if content, err := os.ReadFile(file); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	passphrase := base64.URLEncoding.EncodeToString(b)
	if err := os.WriteFile(file, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
