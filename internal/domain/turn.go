// Package domain holds the coaching data model shared by every layer.
package domain

import (
	"fmt"
	"time"
)

// Role identifies who produced a turn.
type Role int

const (
	RoleLearner Role = iota
	RoleAssistant
	RoleSystem
)

// String returns the persisted wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleLearner:
		return "human"
	case RoleAssistant:
		return "ai"
	case RoleSystem:
		return "system"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// MarshalText encodes the role by wire name.
func (r Role) MarshalText() ([]byte, error) {
	switch r {
	case RoleLearner, RoleAssistant, RoleSystem:
		return []byte(r.String()), nil
	default:
		return nil, fmt.Errorf("unknown role %d", int(r))
	}
}

// UnmarshalText decodes a wire name. "user" and "assistant" are accepted as aliases.
func (r *Role) UnmarshalText(text []byte) error {
	switch string(text) {
	case "human", "user":
		*r = RoleLearner
	case "ai", "assistant":
		*r = RoleAssistant
	case "system":
		*r = RoleSystem
	default:
		return fmt.Errorf("unknown role %q", string(text))
	}
	return nil
}

// Classification labels.
const (
	LabelGood          = "good"
	LabelNeedsFocusing = "needs_focusing"
)

// Classification is the outcome of labelling a learner turn.
type Classification struct {
	Label     string `json:"label"`
	Rationale string `json:"rationale,omitempty"`
	Source    string `json:"source,omitempty"`
}

// Turn is one entry of a session transcript.
//
// Content is what the model saw; DisplayText is what the learner typed.
type Turn struct {
	Role           Role            `json:"role"`
	Content        string          `json:"content"`
	DisplayText    string          `json:"display_text,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Classification *Classification `json:"classification,omitempty"`
	TopicID        string          `json:"topic_id,omitempty"`
}

// Display returns the text shown to the learner for this turn.
func (t Turn) Display() string {
	if t.DisplayText != "" {
		return t.DisplayText
	}
	return t.Content
}
