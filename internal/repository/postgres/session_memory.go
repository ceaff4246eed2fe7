// Package postgres persists session memory in a session_memories table,
// one JSONB document per session. Same contract as the file engine, for
// deployments that want the records in a database.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/memchat/memchat-backend/internal/models"
	"github.com/memchat/memchat-backend/internal/repository"
)

// Repository implements repository.SessionMemoryRepository on PostgreSQL.
type Repository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

func NewRepository(db *sqlx.DB, logger *logrus.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Load reads the persisted record. A missing row or an undecodable document
// yields a fresh empty memory; decode problems are logged, not raised.
func (r *Repository) Load(ctx context.Context, sessionID string) (*models.SessionMemory, error) {
	var data []byte
	query := `SELECT data FROM session_memories WHERE session_id = $1`

	err := r.db.GetContext(ctx, &data, query, sessionID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
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

// Save stamps updated_at and upserts the whole record. The row replace is
// atomic, so readers never observe a partial document.
func (r *Repository) Save(ctx context.Context, memory *models.SessionMemory) error {
	memory.UpdatedAt = time.Now()

	data, err := json.Marshal(memory)
	if err != nil {
		return fmt.Errorf("failed to encode session memory: %w", err)
	}

	query := `
		INSERT INTO session_memories (session_id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, memory.SessionID, data, memory.CreatedAt, memory.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save session memory: %w", err)
	}
	return nil
}

// Delete removes the record. Deleting an absent session is not an error.
func (r *Repository) Delete(ctx context.Context, sessionID string) error {
	query := `DELETE FROM session_memories WHERE session_id = $1`
	if _, err := r.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to delete session memory: %w", err)
	}
	return nil
}

// Exists reports whether a persisted record is present.
func (r *Repository) Exists(ctx context.Context, sessionID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM session_memories WHERE session_id = $1)`
	if err := r.db.GetContext(ctx, &exists, query, sessionID); err != nil {
		return false, fmt.Errorf("failed to check session memory: %w", err)
	}
	return exists, nil
}

var _ repository.SessionMemoryRepository = (*Repository)(nil)
