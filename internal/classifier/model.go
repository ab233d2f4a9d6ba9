package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/horizon-coach/internal/domain"
	"github.com/ashureev/horizon-coach/internal/llm"
)

const (
	defaultTimeout = 3 * time.Second
	historyWindow  = 4
)

const systemPrompt = `You review a learner's message to a tutoring coach.
Label it "good" when the learner shows an attempt, their reasoning, or a specific point of confusion.
Label it "needs_focusing" when it only asks for an answer or is too vague to coach.
Reply with JSON only: {"label": "good" | "needs_focusing", "rationale": "<one short sentence>"}`

// Model asks a language model for the label and falls back to Fallback on
// any failure (timeout, provider error, malformed JSON, unknown label).
type Model struct {
	completer llm.Completer
	fallback  Classifier
	timeout   time.Duration
	logger    *slog.Logger
}

// NewModel returns a model-backed classifier.
func NewModel(completer llm.Completer, fallback Classifier, timeout time.Duration, logger *slog.Logger) *Model {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{completer: completer, fallback: fallback, timeout: timeout, logger: logger}
}

type verdict struct {
	Label     string `json:"label"`
	Rationale string `json:"rationale"`
}

// Classify implements Classifier.
func (m *Model) Classify(ctx context.Context, text string, history []domain.Turn) domain.Classification {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	raw, err := m.completer.Complete(callCtx, buildMessages(text, history), true)
	if err != nil {
		m.logger.Warn("turn classification failed", "error", err)
		return m.degrade(ctx, text, history)
	}

	var v verdict
	if err := json.Unmarshal([]byte(extractJSON(raw)), &v); err != nil {
		m.logger.Warn("failed to unmarshal turn classification", "error", err, "response", raw)
		return m.degrade(ctx, text, history)
	}
	switch v.Label {
	case domain.LabelGood, domain.LabelNeedsFocusing:
		return domain.Classification{Label: v.Label, Rationale: strings.TrimSpace(v.Rationale), Source: SourceModel}
	default:
		m.logger.Warn("unknown turn classification label", "label", v.Label)
		return m.degrade(ctx, text, history)
	}
}

func (m *Model) degrade(ctx context.Context, text string, history []domain.Turn) domain.Classification {
	c := m.fallback.Classify(ctx, text, history)
	c.Source = SourceFallback
	return c
}

func buildMessages(text string, history []domain.Turn) []llm.Message {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, t := range history[max(len(history)-historyWindow, 0):] {
			if t.Role == domain.RoleSystem {
				continue
			}
			speaker := "Learner"
			if t.Role == domain.RoleAssistant {
				speaker = "Coach"
			}
			fmt.Fprintf(&b, "%s: %s\n", speaker, t.Display())
		}
		b.WriteString("\n")
	}
	b.WriteString("Learner message to label:\n")
	b.WriteString(text)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: b.String()},
	}
}

// extractJSON trims prose or code fences some models wrap around JSON.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return raw
	}
	return raw[start : end+1]
}
