// Package store persists session snapshots.
package store

import (
	"context"
	"time"

	"github.com/ashureev/horizon-coach/internal/domain"
)

// Repository defines the interface for persisting coaching sessions.
type Repository interface {
	// LoadSession returns the stored snapshot, or nil, nil when none exists.
	LoadSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error)

	// SaveSession creates or replaces the snapshot for rec.SessionID.
	SaveSession(ctx context.Context, rec *domain.SessionRecord) error

	// DeleteSession removes a snapshot. Deleting a missing session is not an error.
	DeleteSession(ctx context.Context, sessionID string) error

	// ListSessions returns up to limit sessions, most recently updated first.
	// A limit <= 0 returns all sessions.
	ListSessions(ctx context.Context, limit int) ([]domain.SessionSummary, error)

	// CleanupExpiredSessions removes sessions not updated within ttl.
	CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the backing store.
	Close() error
}
