// Package file persists session memory as one JSON document per session
// under a configured directory.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/memchat/memchat-backend/internal/models"
	"github.com/memchat/memchat-backend/internal/repository"
)

// Repository stores each session at <dir>/<session_id>.json.
type Repository struct {
	dir    string
	logger *logrus.Logger
}

// NewRepository creates the storage directory if needed.
func NewRepository(dir string, logger *logrus.Logger) (*Repository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create memory directory: %w", err)
	}
	return &Repository{dir: dir, logger: logger}, nil
}

// Load reads the persisted record. Missing, unreadable, or corrupt records
// all yield a fresh empty memory for the id; corruption is logged and the
// bad file left in place.
func (r *Repository) Load(ctx context.Context, sessionID string) (*models.SessionMemory, error) {
	data, err := os.ReadFile(r.path(sessionID))
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.WithError(err).WithField("session_id", sessionID).
				Error("Failed to read session memory")
		}
		return models.NewSessionMemory(sessionID), nil
	}

	var memory models.SessionMemory
	if err := json.Unmarshal(data, &memory); err != nil {
		r.logger.WithError(err).WithField("session_id", sessionID).
			Error("Corrupt session memory, starting fresh")
		return models.NewSessionMemory(sessionID), nil
	}

	if memory.Messages == nil {
		memory.Messages = []models.Message{}
	}
	return &memory, nil
}

// Save stamps updated_at and writes the record via a temp file plus rename
// so readers never observe a partial write.
func (r *Repository) Save(ctx context.Context, memory *models.SessionMemory) error {
	memory.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(memory, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session memory: %w", err)
	}

	path := r.path(memory.SessionID)
	tmp, err := os.CreateTemp(r.dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session memory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace session memory: %w", err)
	}
	return nil
}

// Delete removes the record if present. Absence is not an error.
func (r *Repository) Delete(ctx context.Context, sessionID string) error {
	if err := os.Remove(r.path(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session memory: %w", err)
	}
	return nil
}

// Exists reports whether a persisted record is present.
func (r *Repository) Exists(ctx context.Context, sessionID string) (bool, error) {
	_, err := os.Stat(r.path(sessionID))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat session memory: %w", err)
}

func (r *Repository) path(sessionID string) string {
	return filepath.Join(r.dir, sanitizeID(sessionID)+".json")
}

// sanitizeID keeps session-derived filenames inside the storage directory.
// Anything outside a conservative character set becomes an underscore.
func sanitizeID(sessionID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, sessionID)
}

var _ repository.SessionMemoryRepository = (*Repository)(nil)
