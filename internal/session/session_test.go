package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ashureev/horizon-coach/internal/domain"
	"github.com/ashureev/horizon-coach/internal/topic"
)

func populated(t *testing.T) *Session {
	t.Helper()
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	s := New("sess-1", 3)
	s.Friction = domain.FrictionState{Progress: 2, Threshold: 3, Mode: domain.ModeFriction}
	s.LastPrompt = domain.ModeGuidance
	s.Topics = topic.NewIndex(
		domain.Topic{ID: "t2", Name: "Later Created", Keywords: []string{"zeta"}, MessageCount: 1, Mastery: 0.4},
		domain.Topic{ID: "t1", Name: "Earlier Id", Keywords: []string{"alpha", "beta"}, MessageCount: 3, Mastery: 0.7},
	)
	s.Append(domain.Turn{
		Role:        domain.RoleLearner,
		Content:     "Context:\nch 3\n\nQuestion:\nwhy alpha",
		DisplayText: "why alpha",
		CreatedAt:   at,
		Classification: &domain.Classification{
			Label:     domain.LabelNeedsFocusing,
			Rationale: "too short",
			Source:    "heuristic",
		},
		TopicID: "t1",
	})
	s.Append(domain.Turn{Role: domain.RoleAssistant, Content: "What do you notice?", CreatedAt: at.Add(time.Second)})
	s.Pending = &domain.PendingMicrocheck{
		ID:        "mc",
		CreatedAt: at,
		Questions: []domain.Question{{
			ID:              "mc-q1",
			Prompt:          "p",
			Options:         []domain.Option{{ID: "A", Text: "a"}, {ID: "B", Text: "b"}},
			CorrectOptionID: "A",
			TopicID:         "t1",
		}},
	}
	s.Attempts = []domain.MicrocheckAttempt{{
		ID:          "old",
		CreatedAt:   at,
		CompletedAt: at.Add(time.Minute),
		Results:     []domain.QuestionResult{{QuestionID: "old-q1", SelectedOptionID: "B", TopicID: "t2"}},
		Feedback:    "Q1: Not quite.",
	}}
	s.TurnsSinceMicrocheck = 1
	s.LastActivity = at.Add(time.Second)
	return s
}

func TestRecord_RoundTripThroughJSON(t *testing.T) {
	s := populated(t)
	now := time.Date(2026, 2, 3, 5, 0, 0, 0, time.UTC)

	data, err := json.Marshal(s.Record(now))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var rec domain.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, err := FromRecord(&rec, 3)
	if err != nil {
		t.Fatalf("FromRecord() error = %v", err)
	}

	if diff := cmp.Diff(s.Friction, got.Friction); diff != "" {
		t.Fatalf("friction mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(s.Topics.Snapshot(), got.Topics.Snapshot()); diff != "" {
		t.Fatalf("topics mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(s.Pending, got.Pending); diff != "" {
		t.Fatalf("pending mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(s.Turns, got.Turns); diff != "" {
		t.Fatalf("turns mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(s.Attempts, got.Attempts); diff != "" {
		t.Fatalf("attempts mismatch (-want +got):\n%s", diff)
	}
	if got.LastPrompt != domain.ModeGuidance || got.TurnsSinceMicrocheck != 1 {
		t.Fatalf("unexpected scalars: prompt=%s turns=%d", got.LastPrompt, got.TurnsSinceMicrocheck)
	}
	if !got.UpdatedAt.Equal(now) {
		t.Fatalf("expected updated at %v, got %v", now, got.UpdatedAt)
	}
}

func TestRecord_IsDetachedFromSession(t *testing.T) {
	s := populated(t)
	rec := s.Record(time.Now())

	s.Topics.Get("t1").Keywords[0] = "mutated"
	s.Pending.Questions[0].Options[0].Text = "mutated"

	if rec.Topics[1].Keywords[0] != "alpha" {
		t.Fatal("record topics alias session state")
	}
	if rec.PendingMicrocheck.Questions[0].Options[0].Text != "a" {
		t.Fatal("record pending microcheck aliases session state")
	}
}

func TestFromRecord_ClampsProgressToThreshold(t *testing.T) {
	rec := &domain.SessionRecord{SessionID: "s", FrictionProgress: 5}
	got, err := FromRecord(rec, 3)
	if err != nil {
		t.Fatalf("FromRecord() error = %v", err)
	}
	if got.Friction.Progress != 3 || !got.Friction.GuidanceReady {
		t.Fatalf("expected clamped ready state, got %+v", got.Friction)
	}
}

func TestFromRecord_ReadyFillsProgress(t *testing.T) {
	rec := &domain.SessionRecord{SessionID: "s", FrictionProgress: 2, GuidanceReady: true}
	got, err := FromRecord(rec, 5)
	if err != nil {
		t.Fatalf("FromRecord() error = %v", err)
	}
	if got.Friction.Progress != 5 || !got.Friction.GuidanceReady {
		t.Fatalf("expected full ready meter, got %+v", got.Friction)
	}
}

func TestLastPromptDefaultsToFriction(t *testing.T) {
	if got := New("s", 3).LastPrompt; got != domain.ModeFriction {
		t.Fatalf("New() last prompt = %q, want friction", got)
	}
	got, err := FromRecord(&domain.SessionRecord{SessionID: "s"}, 3)
	if err != nil {
		t.Fatalf("FromRecord() error = %v", err)
	}
	if got.LastPrompt != domain.ModeFriction {
		t.Fatalf("FromRecord() last prompt = %q, want friction", got.LastPrompt)
	}
}

func TestFromRecord_RejectsUnknownMode(t *testing.T) {
	if _, err := FromRecord(&domain.SessionRecord{SessionID: "s", SessionMode: "chaos"}, 3); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestFromRecord_LastActivityFallsBackToUpdatedAt(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := FromRecord(&domain.SessionRecord{SessionID: "s", UpdatedAt: at}, 3)
	if err != nil {
		t.Fatalf("FromRecord() error = %v", err)
	}
	if !got.LastActivity.Equal(at) {
		t.Fatalf("expected last activity %v, got %v", at, got.LastActivity)
	}
}

func TestLastLearnerTurnAndMessageCount(t *testing.T) {
	s := populated(t)
	s.Append(domain.Turn{Role: domain.RoleSystem, Content: "note"})
	if s.MessageCount() != 2 {
		t.Fatalf("expected 2 messages, got %d", s.MessageCount())
	}
	if got := s.LastLearnerTurn(); got == nil || got.DisplayText != "why alpha" {
		t.Fatalf("unexpected last learner turn %+v", got)
	}
}
