package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ashureev/horizon-coach/internal/domain"
)

func newSQLite(t *testing.T) Repository {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "coach.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(id string, updated time.Time, turns int) *domain.SessionRecord {
	rec := &domain.SessionRecord{
		SessionID:        id,
		FrictionProgress: 1,
		SessionMode:      "friction",
		LastPrompt:       "guidance",
		Topics: []domain.Topic{
			{ID: "t1", Name: "Loops", Keywords: []string{"loop", "index"}, MessageCount: 2, Mastery: 0.6},
		},
		PendingMicrocheck: &domain.PendingMicrocheck{
			ID:        "mc",
			CreatedAt: updated.UTC(),
			Questions: []domain.Question{{ID: "mc-q1", Prompt: "p", Options: []domain.Option{{ID: "A", Text: "a"}}, CorrectOptionID: "A", TopicID: "t1"}},
		},
		TurnsSinceMicrocheck: 2,
		LastActivity:         updated.UTC(),
		UpdatedAt:            updated.UTC(),
	}
	for i := 0; i < turns; i++ {
		rec.Messages = append(rec.Messages, domain.Turn{
			Role:           domain.RoleLearner,
			Content:        "q",
			CreatedAt:      updated.UTC(),
			Classification: &domain.Classification{Label: "good", Source: "heuristic"},
			TopicID:        "t1",
		})
	}
	rec.Messages = append(rec.Messages, domain.Turn{Role: domain.RoleSystem, Content: "ignored in counts", CreatedAt: updated.UTC()})
	return rec
}

func forEachStore(t *testing.T, fn func(t *testing.T, repo Repository)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLite(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
}

func TestRepository_LoadMissingReturnsNil(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo Repository) {
		rec, err := repo.LoadSession(context.Background(), "nope")
		if err != nil || rec != nil {
			t.Fatalf("expected nil, nil; got %v, %v", rec, err)
		}
	})
}

func TestRepository_SaveLoadRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		want := record("s1", time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC), 2)

		if err := repo.SaveSession(ctx, want); err != nil {
			t.Fatalf("SaveSession() error = %v", err)
		}
		got, err := repo.LoadSession(ctx, "s1")
		if err != nil {
			t.Fatalf("LoadSession() error = %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
		}

		want.FrictionProgress = 2
		if err := repo.SaveSession(ctx, want); err != nil {
			t.Fatalf("SaveSession() overwrite error = %v", err)
		}
		got, _ = repo.LoadSession(ctx, "s1")
		if got.FrictionProgress != 2 {
			t.Fatalf("expected overwrite, got progress %d", got.FrictionProgress)
		}
	})
}

func TestRepository_ListSessionsOrderedByUpdate(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
		for i, id := range []string{"old", "newest", "middle"} {
			offsets := []time.Duration{0, 2 * time.Hour, time.Hour}
			if err := repo.SaveSession(ctx, record(id, base.Add(offsets[i]), i+1)); err != nil {
				t.Fatalf("SaveSession(%s) error = %v", id, err)
			}
		}

		got, err := repo.ListSessions(ctx, 0)
		if err != nil {
			t.Fatalf("ListSessions() error = %v", err)
		}
		var ids []string
		for _, s := range got {
			ids = append(ids, s.SessionID)
		}
		if diff := cmp.Diff([]string{"newest", "middle", "old"}, ids); diff != "" {
			t.Fatalf("order mismatch (-want +got):\n%s", diff)
		}
		if got[0].MessageCount != 2 {
			t.Fatalf("expected message count 2 for newest, got %d", got[0].MessageCount)
		}
		if !got[0].UpdatedAt.Equal(base.Add(2 * time.Hour)) {
			t.Fatalf("unexpected updated at %v", got[0].UpdatedAt)
		}

		limited, err := repo.ListSessions(ctx, 1)
		if err != nil || len(limited) != 1 {
			t.Fatalf("expected one session with limit, got %d (%v)", len(limited), err)
		}
	})
}

func TestRepository_DeleteIsIdempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		if err := repo.SaveSession(ctx, record("s1", time.Now(), 1)); err != nil {
			t.Fatalf("SaveSession() error = %v", err)
		}
		for i := 0; i < 2; i++ {
			if err := repo.DeleteSession(ctx, "s1"); err != nil {
				t.Fatalf("DeleteSession() call %d error = %v", i+1, err)
			}
		}
		if rec, _ := repo.LoadSession(ctx, "s1"); rec != nil {
			t.Fatal("expected session to be deleted")
		}
	})
}

func TestRepository_CleanupExpiredSessions(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		_ = repo.SaveSession(ctx, record("stale", time.Now().Add(-48*time.Hour), 1))
		_ = repo.SaveSession(ctx, record("fresh", time.Now(), 1))

		n, err := repo.CleanupExpiredSessions(ctx, 24*time.Hour)
		if err != nil {
			t.Fatalf("CleanupExpiredSessions() error = %v", err)
		}
		if n != 1 {
			t.Fatalf("expected 1 removed, got %d", n)
		}
		if rec, _ := repo.LoadSession(ctx, "fresh"); rec == nil {
			t.Fatal("fresh session should survive cleanup")
		}
	})
}
