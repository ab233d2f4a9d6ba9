// Package session holds the per-session aggregate and its durable snapshot form.
package session

import (
	"fmt"
	"time"

	"github.com/ashureev/horizon-coach/internal/domain"
	"github.com/ashureev/horizon-coach/internal/topic"
)

// Session is all mutable state of one learner conversation. It is not safe
// for concurrent use; the orchestrator serializes access per session id.
type Session struct {
	ID                   string
	Turns                []domain.Turn
	Friction             domain.FrictionState
	Topics               *topic.Index
	Pending              *domain.PendingMicrocheck
	Attempts             []domain.MicrocheckAttempt
	TurnsSinceMicrocheck int
	LastActivity         time.Time
	LastPrompt           domain.Mode
	UpdatedAt            time.Time
}

// New returns an empty session.
func New(id string, threshold int) *Session {
	return &Session{
		ID:         id,
		Friction:   domain.FrictionState{Threshold: threshold, Mode: domain.ModeFriction},
		Topics:     topic.NewIndex(),
		LastPrompt: domain.ModeFriction,
	}
}

// FromRecord rehydrates a session from its snapshot. The configured threshold
// wins over whatever was in force when the snapshot was written.
func FromRecord(rec *domain.SessionRecord, threshold int) (*Session, error) {
	mode, err := domain.ParseMode(rec.SessionMode)
	if err != nil {
		return nil, fmt.Errorf("hydrate session %s: %w", rec.SessionID, err)
	}
	lastPrompt, err := domain.ParseMode(rec.LastPrompt)
	if err != nil {
		return nil, fmt.Errorf("hydrate session %s: %w", rec.SessionID, err)
	}

	// Ready implies a full meter.
	progress := min(max(rec.FrictionProgress, 0), threshold)
	if rec.GuidanceReady {
		progress = threshold
	}
	s := &Session{
		ID:    rec.SessionID,
		Turns: append([]domain.Turn(nil), rec.Messages...),
		Friction: domain.FrictionState{
			Progress:      progress,
			Threshold:     threshold,
			GuidanceReady: progress == threshold,
			Mode:          mode,
		},
		Topics:               topic.NewIndex(rec.Topics...),
		Pending:              clonePending(rec.PendingMicrocheck),
		Attempts:             append([]domain.MicrocheckAttempt(nil), rec.MicrocheckHistory...),
		TurnsSinceMicrocheck: rec.TurnsSinceMicrocheck,
		LastActivity:         rec.LastActivity,
		LastPrompt:           lastPrompt,
		UpdatedAt:            rec.UpdatedAt,
	}
	if s.LastActivity.IsZero() {
		s.LastActivity = rec.UpdatedAt
	}
	return s, nil
}

// Record builds the durable snapshot, stamping it with now.
func (s *Session) Record(now time.Time) *domain.SessionRecord {
	s.UpdatedAt = now
	return &domain.SessionRecord{
		SessionID:            s.ID,
		Messages:             append([]domain.Turn(nil), s.Turns...),
		FrictionProgress:     s.Friction.Progress,
		SessionMode:          string(s.Friction.Mode),
		LastPrompt:           string(s.LastPrompt),
		GuidanceReady:        s.Friction.GuidanceReady,
		Topics:               s.Topics.Snapshot(),
		MicrocheckHistory:    append([]domain.MicrocheckAttempt(nil), s.Attempts...),
		PendingMicrocheck:    clonePending(s.Pending),
		TurnsSinceMicrocheck: s.TurnsSinceMicrocheck,
		LastActivity:         s.LastActivity,
		UpdatedAt:            now,
	}
}

// Append adds a turn to the transcript.
func (s *Session) Append(t domain.Turn) {
	s.Turns = append(s.Turns, t)
}

// LastLearnerTurn returns the most recent learner turn, or nil.
func (s *Session) LastLearnerTurn() *domain.Turn {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Role == domain.RoleLearner {
			return &s.Turns[i]
		}
	}
	return nil
}

// MessageCount counts learner and assistant turns.
func (s *Session) MessageCount() int {
	return CountMessages(s.Turns)
}

// CountMessages counts learner and assistant turns in a transcript.
func CountMessages(turns []domain.Turn) int {
	n := 0
	for _, t := range turns {
		if t.Role != domain.RoleSystem {
			n++
		}
	}
	return n
}

func clonePending(p *domain.PendingMicrocheck) *domain.PendingMicrocheck {
	if p == nil {
		return nil
	}
	c := *p
	c.Questions = make([]domain.Question, len(p.Questions))
	for i, q := range p.Questions {
		q.Options = append([]domain.Option(nil), q.Options...)
		c.Questions[i] = q
	}
	return &c
}
