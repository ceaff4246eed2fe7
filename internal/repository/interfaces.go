package repository

import (
	"context"

	"github.com/memchat/memchat-backend/internal/models"
)

// SessionMemoryRepository defines persistent storage for per-session memory
// records, keyed by session id.
//
// Load never fails the pipeline for a missing or unreadable record: engines
// return a fresh empty memory in both cases and surface real I/O problems
// through logging, not errors. Save replaces the whole record atomically so
// a concurrent reader never observes a half-written state, and refreshes
// updated_at. Delete is idempotent.
type SessionMemoryRepository interface {
	Load(ctx context.Context, sessionID string) (*models.SessionMemory, error)
	Save(ctx context.Context, memory *models.SessionMemory) error
	Delete(ctx context.Context, sessionID string) error
	Exists(ctx context.Context, sessionID string) (bool, error)
}
