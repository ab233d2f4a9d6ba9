package domain

import "time"

// Option is one selectable answer of a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is a single microcheck item tied to a topic.
type Question struct {
	ID              string   `json:"id"`
	Prompt          string   `json:"prompt"`
	Options         []Option `json:"options"`
	CorrectOptionID string   `json:"correct_option_id"`
	TopicID         string   `json:"topic_id"`
}

// PendingMicrocheck is an outstanding quiz. At most one exists per session.
type PendingMicrocheck struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	Questions []Question `json:"questions"`
}

// QuestionResult records how one question was answered.
type QuestionResult struct {
	QuestionID       string `json:"question_id"`
	SelectedOptionID string `json:"selected_option_id"`
	Correct          bool   `json:"correct"`
	TopicID          string `json:"topic_id"`
}

// MicrocheckAttempt is the immutable record of a graded microcheck.
type MicrocheckAttempt struct {
	ID          string           `json:"id"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt time.Time        `json:"completed_at"`
	Results     []QuestionResult `json:"results"`
	Feedback    string           `json:"feedback"`
}

// MasteryUpdate reports a topic's mastery after grading.
type MasteryUpdate struct {
	TopicID   string
	TopicName string
	Mastery   float64
	Correct   bool
}
