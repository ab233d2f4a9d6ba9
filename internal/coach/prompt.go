package coach

import (
	"fmt"
	"strings"

	"github.com/ashureev/horizon-coach/internal/domain"
	"github.com/ashureev/horizon-coach/internal/llm"
)

const (
	frictionSystemPrompt = "You are Horizon Labs' learning coach. NEVER answer questions directly; " +
		"NEVER give direct solutions; even if you've previously provided direct answers, instead craft hints, " +
		"Socratic prompts, and step-by-step guidance that help learners discover the answer themselves."

	guidanceSystemPrompt = "You are Horizon Labs' learning coach. Provide clear, direct explanations that " +
		"build on the learner's prior reasoning while confirming key concepts. If the learner is stuck, " +
		"offer a direct answer with context and examples."
)

// historyLimit bounds how many prior turns are replayed to the model.
const historyLimit = 20

// MetadataEntry is one key/value of turn metadata.
type MetadataEntry struct {
	Key   string
	Value any
}

// Metadata is turn metadata in caller order.
type Metadata []MetadataEntry

// BuildPrompt renders the model-facing text of a learner turn:
// optional Context and Metadata blocks, then the Question, blank-line separated.
func BuildPrompt(text, context string, metadata Metadata) string {
	var blocks []string
	if context = strings.TrimSpace(context); context != "" {
		blocks = append(blocks, "Context:\n"+context)
	}
	if len(metadata) > 0 {
		lines := make([]string, 0, len(metadata)+1)
		lines = append(lines, "Metadata:")
		for _, kv := range metadata {
			lines = append(lines, fmt.Sprintf("- %s: %v", kv.Key, kv.Value))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	blocks = append(blocks, "Question:\n"+text)
	return strings.Join(blocks, "\n\n")
}

func systemPrompt(mode domain.Mode) string {
	if mode == domain.ModeGuidance {
		return guidanceSystemPrompt
	}
	return frictionSystemPrompt
}

// modelMessages assembles the conversation for the model: the system prompt
// for mode, recent history, then the new prompt.
func modelMessages(mode domain.Mode, history []domain.Turn, prompt string) []llm.Message {
	history = history[max(len(history)-historyLimit, 0):]
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt(mode)})
	for _, t := range history {
		switch t.Role {
		case domain.RoleLearner:
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: t.Content})
		case domain.RoleAssistant:
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: t.Content})
		}
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})
}
