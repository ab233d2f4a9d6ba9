// Package microcheck schedules and grades short knowledge checks.
package microcheck

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/horizon-coach/internal/domain"
	"github.com/ashureev/horizon-coach/internal/topic"
)

// CorrectOptionID is the option every generated question marks correct.
const CorrectOptionID = "A"

const (
	defaultTopicName = "General Reflection"
	masteryStep      = 0.1
)

// ErrMismatch is returned when a submission does not match the pending microcheck.
var ErrMismatch = errors.New("microcheck mismatch")

// Scheduler decides when a microcheck is due and builds it.
type Scheduler struct {
	Frequency     int
	QuestionCount int
	IdleTimeout   time.Duration // zero disables the idle-return trigger
	Now           func() time.Time
	NewID         func() string
}

// NewScheduler returns a scheduler with clamped limits and real clock/ids.
func NewScheduler(frequency, questionCount int, idleTimeout time.Duration) *Scheduler {
	return &Scheduler{
		Frequency:     max(frequency, 1),
		QuestionCount: max(questionCount, 1),
		IdleTimeout:   idleTimeout,
		Now:           time.Now,
		NewID:         uuid.NewString,
	}
}

// IdleDue reports whether a learner returning after lastActivity should be
// quizzed first.
func (s *Scheduler) IdleDue(lastActivity, now time.Time, pending bool) bool {
	if pending || s.IdleTimeout <= 0 || lastActivity.IsZero() {
		return false
	}
	return now.Sub(lastActivity) >= s.IdleTimeout
}

// FrequencyDue reports whether enough assistant turns have passed.
func (s *Scheduler) FrequencyDue(turnsSince int) bool {
	return turnsSince >= max(s.Frequency, 1)
}

// TurnsRemaining is the number of assistant turns until the next scheduled check.
func (s *Scheduler) TurnsRemaining(turnsSince int, pending bool) int {
	if pending {
		return 0
	}
	return max(max(s.Frequency, 1)-turnsSince, 0)
}

// Build creates a microcheck over the most discussed topics in idx. When idx
// is empty a default topic is added to it so grading has somewhere to land.
func (s *Scheduler) Build(idx *topic.Index) *domain.PendingMicrocheck {
	if idx.Len() == 0 {
		idx.Add(&domain.Topic{
			ID:       s.newID(),
			Name:     defaultTopicName,
			Keywords: []string{"general", "reflection"},
			Mastery:  0.5,
		})
	}

	ranked := idx.ByMessageCount()
	ranked = ranked[:min(max(s.QuestionCount, 1), len(ranked))]

	mc := &domain.PendingMicrocheck{ID: s.newID(), CreatedAt: s.now()}
	for i, t := range ranked {
		mc.Questions = append(mc.Questions, question(fmt.Sprintf("%s-q%d", mc.ID, i+1), t))
	}
	return mc
}

func question(id string, t *domain.Topic) domain.Question {
	return domain.Question{
		ID:     id,
		Prompt: fmt.Sprintf("What is the best next step to strengthen your understanding of %s?", t.Name),
		Options: []domain.Option{
			{ID: "A", Text: "Summarize the key idea in your own words and check it with the coach."},
			{ID: "B", Text: "Move on to a new topic without reviewing this one."},
			{ID: "C", Text: "Memorize the final answer without working through the steps."},
		},
		CorrectOptionID: CorrectOptionID,
		TopicID:         t.ID,
	}
}

// Grade scores answers against pending and adjusts topic mastery in idx.
// A nil pending microcheck or a different id yields ErrMismatch and leaves
// everything untouched.
func (s *Scheduler) Grade(
	pending *domain.PendingMicrocheck,
	microcheckID string,
	answers map[string]string,
	idx *topic.Index,
) (domain.MicrocheckAttempt, []domain.MasteryUpdate, error) {
	if pending == nil {
		return domain.MicrocheckAttempt{}, nil, fmt.Errorf("%w: no microcheck is pending", ErrMismatch)
	}
	if pending.ID != microcheckID {
		return domain.MicrocheckAttempt{}, nil, fmt.Errorf("%w: pending microcheck is %s, got %s", ErrMismatch, pending.ID, microcheckID)
	}

	attempt := domain.MicrocheckAttempt{
		ID:          pending.ID,
		CreatedAt:   pending.CreatedAt,
		CompletedAt: s.now(),
	}
	var (
		updates  []domain.MasteryUpdate
		feedback []string
	)
	for i, q := range pending.Questions {
		selected := answers[q.ID]
		correct := selected == q.CorrectOptionID
		attempt.Results = append(attempt.Results, domain.QuestionResult{
			QuestionID:       q.ID,
			SelectedOptionID: selected,
			Correct:          correct,
			TopicID:          q.TopicID,
		})

		name := q.TopicID
		if t := idx.Get(q.TopicID); t != nil {
			t.Mastery = adjust(t.Mastery, correct)
			name = t.Name
			updates = append(updates, domain.MasteryUpdate{
				TopicID:   t.ID,
				TopicName: t.Name,
				Mastery:   t.Mastery,
				Correct:   correct,
			})
		}
		feedback = append(feedback, feedbackLine(i+1, name, correct))
	}
	attempt.Feedback = strings.Join(feedback, "\n")
	return attempt, updates, nil
}

func adjust(mastery float64, correct bool) float64 {
	if correct {
		mastery += masteryStep
	} else {
		mastery -= masteryStep
	}
	return min(max(mastery, 0), 1)
}

func feedbackLine(n int, topicName string, correct bool) string {
	if correct {
		return fmt.Sprintf("Q%d (%s): Correct. Explaining it back and checking in is how %s sticks.", n, topicName, topicName)
	}
	return fmt.Sprintf("Q%d (%s): Not quite. Try summarizing %s in your own words and check it with the coach.", n, topicName, topicName)
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Scheduler) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}
