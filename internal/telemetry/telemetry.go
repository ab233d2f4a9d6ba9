// Package telemetry records one structured event per completed or failed turn.
package telemetry

import (
	"errors"
	"time"
)

// Event outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Event describes one processed turn.
type Event struct {
	Timestamp            time.Time `json:"timestamp"`
	SessionID            string    `json:"session_id"`
	Service              string    `json:"service"`
	Outcome              string    `json:"outcome"`
	Prompt               string    `json:"prompt"`
	GuidanceUsed         bool      `json:"guidance_used"`
	FrictionAttempts     int       `json:"friction_attempts"`
	FrictionThreshold    int       `json:"friction_threshold"`
	ClassificationLabel  string    `json:"classification_label,omitempty"`
	ClassificationSource string    `json:"classification_source,omitempty"`
	TopicID              string    `json:"topic_id,omitempty"`
	LatencyMs            float64   `json:"latency_ms"`
	InputTokens          int       `json:"input_tokens"`
	OutputTokens         int       `json:"output_tokens"`
	TotalTokens          int       `json:"total_tokens"`
	TotalCost            float64   `json:"total_cost"`
	ResponseChars        int       `json:"response_chars"`
	MicrocheckCreated    bool      `json:"microcheck_created,omitempty"`
	Error                string    `json:"error,omitempty"`
}

// Recorder receives turn events. Record must not block the caller for long.
type Recorder interface {
	Record(Event)
	Close() error
}

// Nop discards events.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(Event) {}

// Close implements Recorder.
func (Nop) Close() error { return nil }

// Multi fans an event out to every recorder.
type Multi []Recorder

// Record implements Recorder.
func (m Multi) Record(e Event) {
	for _, r := range m {
		r.Record(e)
	}
}

// Close closes every recorder and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}
