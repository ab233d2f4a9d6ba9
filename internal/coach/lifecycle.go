package coach

import (
	"context"
	"time"

	"github.com/ashureev/horizon-coach/internal/domain"
	"github.com/ashureev/horizon-coach/internal/friction"
	"github.com/ashureev/horizon-coach/internal/session"
)

// TopicSummary is a topic as shown to callers.
type TopicSummary struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	MessageCount int     `json:"message_count"`
	Mastery      float64 `json:"mastery"`
}

// State is the inspection view of a session.
type State struct {
	SessionID                string         `json:"session_id"`
	NextPrompt               string         `json:"next_prompt"`
	LastPrompt               string         `json:"last_prompt"`
	FrictionAttempts         int            `json:"friction_attempts"`
	FrictionThreshold        int            `json:"friction_threshold"`
	ResponsesNeeded          int            `json:"responses_needed"`
	GuidanceReady            bool           `json:"guidance_ready"`
	MinWords                 int            `json:"min_words"`
	MicrocheckPending        bool           `json:"microcheck_pending"`
	MicrocheckTurnsRemaining int            `json:"microcheck_turns_remaining"`
	MicrocheckFrequency      int            `json:"microcheck_frequency"`
	MicrocheckQuestionCount  int            `json:"microcheck_question_count"`
	Topics                   []TopicSummary `json:"topics"`
	ClassificationLabel      string         `json:"classification_label,omitempty"`
	ClassificationRationale  string         `json:"classification_rationale,omitempty"`
	ClassificationSource     string         `json:"classification_source,omitempty"`
}

// PendingQuestion is a question of the pending microcheck. The correct
// option is not revealed.
type PendingQuestion struct {
	QuestionID string          `json:"question_id"`
	Prompt     string          `json:"prompt"`
	Options    []domain.Option `json:"options"`
	TopicID    string          `json:"topic_id"`
	TopicName  string          `json:"topic_name"`
}

// PendingView is the pending microcheck as shown to the learner.
type PendingView struct {
	MicrocheckID string            `json:"microcheck_id"`
	CreatedAt    time.Time         `json:"created_at"`
	Questions    []PendingQuestion `json:"questions"`
}

// Answer selects an option for a question.
type Answer struct {
	QuestionID       string `json:"question_id"`
	SelectedOptionID string `json:"selected_option_id"`
}

// SubmitRequest grades the pending microcheck.
type SubmitRequest struct {
	SessionID    string
	MicrocheckID string
	Answers      []Answer
}

// ResultView is one graded question.
type ResultView struct {
	QuestionID       string `json:"question_id"`
	SelectedOptionID string `json:"selected_option_id"`
	Correct          bool   `json:"correct"`
	TopicID          string `json:"topic_id"`
	TopicName        string `json:"topic_name"`
}

// MasteryView is a topic's mastery after grading.
type MasteryView struct {
	TopicID   string  `json:"topic_id"`
	TopicName string  `json:"topic_name"`
	Mastery   float64 `json:"mastery"`
	Correct   bool    `json:"correct"`
}

// SubmitResult is the outcome of grading.
type SubmitResult struct {
	MicrocheckID   string        `json:"microcheck_id"`
	Feedback       string        `json:"feedback"`
	Results        []ResultView  `json:"results"`
	MasteryUpdates []MasteryView `json:"mastery_updates"`
}

// HistoryEntry is one transcript line as shown to the learner.
type HistoryEntry struct {
	Role                    string    `json:"role"`
	Content                 string    `json:"content"`
	CreatedAt               time.Time `json:"created_at"`
	TurnClassification      string    `json:"turn_classification,omitempty"`
	ClassificationRationale string    `json:"classification_rationale,omitempty"`
	TopicID                 string    `json:"topic_id,omitempty"`
	TopicName               string    `json:"topic_name,omitempty"`
}

// ResetSession clears all in-memory and stored state for id. Resetting an
// unknown session succeeds.
func (s *Service) ResetSession(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingSessionID
	}
	e, release, err := s.sessions.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	e.sess = nil
	if err := s.repo.DeleteSession(ctx, id); err != nil {
		return &PersistenceError{Op: "delete", Err: err}
	}
	s.logger.Info("session reset", "session_id", id)
	return nil
}

// State returns the inspection view of a session.
func (s *Service) State(ctx context.Context, id string) (*State, error) {
	var st *State
	err := s.withSession(ctx, id, true, func(sess *session.Session) error {
		st = s.state(sess)
		return nil
	})
	return st, err
}

func (s *Service) state(sess *session.Session) *State {
	st := &State{
		SessionID:                sess.ID,
		NextPrompt:               string(friction.NextPrompt(sess.Friction)),
		LastPrompt:               string(sess.LastPrompt),
		FrictionAttempts:         sess.Friction.Progress,
		FrictionThreshold:        sess.Friction.Threshold,
		ResponsesNeeded:          friction.ResponsesNeeded(sess.Friction),
		GuidanceReady:            sess.Friction.GuidanceReady,
		MinWords:                 s.gate.MinWords,
		MicrocheckPending:        sess.Pending != nil,
		MicrocheckTurnsRemaining: s.scheduler.TurnsRemaining(sess.TurnsSinceMicrocheck, sess.Pending != nil),
		MicrocheckFrequency:      s.scheduler.Frequency,
		MicrocheckQuestionCount:  s.scheduler.QuestionCount,
		Topics:                   []TopicSummary{},
	}
	for _, t := range sess.Topics.ByMessageCount() {
		st.Topics = append(st.Topics, TopicSummary{ID: t.ID, Name: t.Name, MessageCount: t.MessageCount, Mastery: t.Mastery})
	}
	if last := sess.LastLearnerTurn(); last != nil && last.Classification != nil {
		st.ClassificationLabel = last.Classification.Label
		st.ClassificationRationale = last.Classification.Rationale
		st.ClassificationSource = last.Classification.Source
	}
	return st
}

// PendingMicrocheck returns the outstanding microcheck, or nil when none is
// pending. Fetching may create one through the idle-return trigger.
func (s *Service) PendingMicrocheck(ctx context.Context, id string) (*PendingView, error) {
	var view *PendingView
	err := s.withSession(ctx, id, true, func(sess *session.Session) error {
		if sess.Pending == nil {
			return nil
		}
		view = &PendingView{MicrocheckID: sess.Pending.ID, CreatedAt: sess.Pending.CreatedAt}
		for _, q := range sess.Pending.Questions {
			view.Questions = append(view.Questions, PendingQuestion{
				QuestionID: q.ID,
				Prompt:     q.Prompt,
				Options:    append([]domain.Option(nil), q.Options...),
				TopicID:    q.TopicID,
				TopicName:  topicName(sess, q.TopicID),
			})
		}
		return nil
	})
	return view, err
}

// SubmitMicrocheck grades the pending microcheck. A mismatched id returns an
// error matching ErrMicrocheckMismatch and changes nothing.
func (s *Service) SubmitMicrocheck(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	var result *SubmitResult
	err := s.withSession(ctx, req.SessionID, false, func(sess *session.Session) error {
		answers := make(map[string]string, len(req.Answers))
		for _, a := range req.Answers {
			answers[a.QuestionID] = a.SelectedOptionID
		}
		attempt, updates, err := s.scheduler.Grade(sess.Pending, req.MicrocheckID, answers, sess.Topics)
		if err != nil {
			return err
		}

		sess.Attempts = append(sess.Attempts, attempt)
		sess.Pending = nil
		sess.TurnsSinceMicrocheck = 0
		sess.LastActivity = s.now()

		result = &SubmitResult{MicrocheckID: attempt.ID, Feedback: attempt.Feedback}
		for _, r := range attempt.Results {
			result.Results = append(result.Results, ResultView{
				QuestionID:       r.QuestionID,
				SelectedOptionID: r.SelectedOptionID,
				Correct:          r.Correct,
				TopicID:          r.TopicID,
				TopicName:        topicName(sess, r.TopicID),
			})
		}
		for _, u := range updates {
			result.MasteryUpdates = append(result.MasteryUpdates, MasteryView(u))
		}
		s.logger.Info("microcheck submitted", "session_id", sess.ID, "microcheck_id", attempt.ID)
		return s.persist(ctx, sess)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// History returns the learner-visible transcript in order.
func (s *Service) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	var out []HistoryEntry
	err := s.withSession(ctx, id, false, func(sess *session.Session) error {
		out = make([]HistoryEntry, 0, len(sess.Turns))
		for _, t := range sess.Turns {
			var role string
			switch t.Role {
			case domain.RoleLearner:
				role = "user"
			case domain.RoleAssistant:
				role = "assistant"
			default:
				continue
			}
			h := HistoryEntry{
				Role:      role,
				Content:   t.Display(),
				CreatedAt: t.CreatedAt,
				TopicID:   t.TopicID,
				TopicName: topicName(sess, t.TopicID),
			}
			if t.Classification != nil {
				h.TurnClassification = t.Classification.Label
				h.ClassificationRationale = t.Classification.Rationale
			}
			out = append(out, h)
		}
		return nil
	})
	return out, err
}

// ListSessions returns stored sessions, most recently updated first.
func (s *Service) ListSessions(ctx context.Context, limit int) ([]domain.SessionSummary, error) {
	out, err := s.repo.ListSessions(ctx, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return out, nil
}

func topicName(sess *session.Session, id string) string {
	if t := sess.Topics.Get(id); t != nil {
		return t.Name
	}
	return ""
}
