package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/horizon-coach/internal/domain"
	"github.com/ashureev/horizon-coach/internal/session"
)

// MemoryStore is a process-local Repository. Snapshots are stored encoded so
// callers never share memory with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
	updated  map[string]time.Time

	// FailSaves makes SaveSession return this error when set. Tests use it
	// to exercise persistence failures.
	FailSaves error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]byte),
		updated:  make(map[string]time.Time),
	}
}

// LoadSession implements Repository.
func (m *MemoryStore) LoadSession(_ context.Context, sessionID string) (*domain.SessionRecord, error) {
	m.mu.RLock()
	data, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var rec domain.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &rec, nil
}

// SaveSession implements Repository.
func (m *MemoryStore) SaveSession(_ context.Context, rec *domain.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves != nil {
		return m.FailSaves
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", rec.SessionID, err)
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	m.sessions[rec.SessionID] = data
	m.updated[rec.SessionID] = updatedAt
	return nil
}

// DeleteSession implements Repository.
func (m *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	delete(m.updated, sessionID)
	return nil
}

// ListSessions implements Repository.
func (m *MemoryStore) ListSessions(ctx context.Context, limit int) ([]domain.SessionSummary, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	out := make([]domain.SessionSummary, 0, len(ids))
	for _, id := range ids {
		rec, err := m.LoadSession(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		m.mu.RLock()
		updated := m.updated[id]
		m.mu.RUnlock()
		out = append(out, domain.SessionSummary{
			SessionID:    id,
			UpdatedAt:    updated,
			MessageCount: session.CountMessages(rec.Messages),
		})
	}
	slices.SortFunc(out, func(a, b domain.SessionSummary) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.SessionID, b.SessionID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CleanupExpiredSessions implements Repository.
func (m *MemoryStore) CleanupExpiredSessions(_ context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, updated := range m.updated {
		if updated.Before(threshold) {
			delete(m.sessions, id)
			delete(m.updated, id)
			n++
		}
	}
	return n, nil
}

// Ping implements Repository.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close implements Repository.
func (m *MemoryStore) Close() error { return nil }
