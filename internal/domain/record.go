package domain

import "time"

// SessionRecord is the durable snapshot of a session. Every repository
// must round-trip it without loss.
type SessionRecord struct {
	SessionID            string              `json:"session_id"`
	Messages             []Turn              `json:"messages"`
	FrictionProgress     int                 `json:"friction_progress"`
	SessionMode          string              `json:"session_mode"`
	LastPrompt           string              `json:"last_prompt,omitempty"`
	GuidanceReady        bool                `json:"guidance_ready"`
	Topics               []Topic             `json:"topics"`
	MicrocheckHistory    []MicrocheckAttempt `json:"microcheck_history"`
	PendingMicrocheck    *PendingMicrocheck  `json:"pending_microcheck,omitempty"`
	TurnsSinceMicrocheck int                 `json:"turns_since_microcheck"`
	LastActivity         time.Time           `json:"last_activity"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// SessionSummary is a listing entry for a stored session.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}
