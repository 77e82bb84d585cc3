package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"igreels/pkg/logger"
	"igreels/pkg/models"
)

const version = 1

// Checkpoint is the progress of one run over a fixed account list.
type Checkpoint struct {
	RunID     string               `json:"run_id"`
	Accounts  []string             `json:"accounts"`
	Completed []string             `json:"completed"`
	Result    *models.ScrapeResult `json:"result"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
	Version   int                  `json:"version"`
}

// IsCompleted reports whether username was fully processed.
func (c *Checkpoint) IsCompleted(username string) bool {
	return slices.Contains(c.Completed, username)
}

// Remaining returns the accounts not yet completed, in list order.
func (c *Checkpoint) Remaining() []string {
	var out []string
	for _, a := range c.Accounts {
		if !c.IsCompleted(a) {
			out = append(out, a)
		}
	}
	return out
}

// Manager handles checkpoint operations for one account list
type Manager struct {
	checkpointPath string
	accounts       []string
	logger         logger.Logger
}

// NewManager creates a manager whose file is keyed by the account list, so
// a resumed run only picks up a checkpoint made for the same accounts.
func NewManager(dir string, accounts []string, log logger.Logger) (*Manager, error) {
	if len(accounts) == 0 {
		return nil, fmt.Errorf("checkpoint needs at least one account")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Manager{
		checkpointPath: filepath.Join(dir, Key(accounts)+".checkpoint.json"),
		accounts:       slices.Clone(accounts),
		logger:         log,
	}, nil
}

// Key identifies an account list.
func Key(accounts []string) string {
	sum := sha256.Sum256([]byte(strings.Join(accounts, "\n")))
	return "run_" + hex.EncodeToString(sum[:6])
}

// Path returns the checkpoint file path
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create starts a fresh checkpoint, replacing any existing one.
func (m *Manager) Create(runID string) (*Checkpoint, error) {
	result := models.NewScrapeResult()
	now := time.Now()
	checkpoint := &Checkpoint{
		RunID:     runID,
		Accounts:  slices.Clone(m.accounts),
		Completed: []string{},
		Result:    result,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   version,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"run_id":   runID,
		"accounts": len(m.accounts),
		"path":     m.checkpointPath,
	})
	return checkpoint, nil
}

// Load returns the saved checkpoint, or nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}

	checkpoint := &Checkpoint{Result: models.NewScrapeResult()}
	if err := json.Unmarshal(data, checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.Version != version {
		return nil, fmt.Errorf("unsupported checkpoint version %d", checkpoint.Version)
	}
	if !slices.Equal(checkpoint.Accounts, m.accounts) {
		return nil, fmt.Errorf("checkpoint %s was made for a different account list", m.checkpointPath)
	}
	if checkpoint.Result == nil {
		checkpoint.Result = models.NewScrapeResult()
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"run_id":     checkpoint.RunID,
		"completed":  len(checkpoint.Completed),
		"remaining":  len(checkpoint.Remaining()),
		"updated_at": checkpoint.UpdatedAt,
	})
	return checkpoint, nil
}

// Save writes the checkpoint atomically.
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}
	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"run_id":    checkpoint.RunID,
		"completed": len(checkpoint.Completed),
	})
	return nil
}

// RecordAccount stores the details of a finished account and saves.
func (m *Manager) RecordAccount(checkpoint *Checkpoint, username string, details []models.PostDetail) error {
	checkpoint.Result.SetPosts(username, details)
	if !checkpoint.IsCompleted(username) {
		checkpoint.Completed = append(checkpoint.Completed, username)
	}
	return m.Save(checkpoint)
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}
