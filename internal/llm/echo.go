package llm

import (
	"context"
	"iter"
	"strings"
)

// Echo is an offline Streamer for local development. It replays the last
// user message word by word.
type Echo struct{}

// Stream implements Streamer.
func (Echo) Stream(ctx context.Context, messages []Message) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		var last string
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Role == RoleUser {
				last = messages[i].Content
				break
			}
		}
		words := strings.Fields("Let's think it through: " + last)
		for i, w := range words {
			if err := ctx.Err(); err != nil {
				yield(Chunk{}, err)
				return
			}
			if i > 0 {
				w = " " + w
			}
			if !yield(Chunk{Text: w}, nil) {
				return
			}
		}
		yield(Chunk{Usage: &Usage{OutputTokens: len(words), TotalTokens: len(words)}}, nil)
	}
}

// Complete implements Completer.
func (Echo) Complete(_ context.Context, _ []Message, jsonMode bool) (string, error) {
	if jsonMode {
		return `{"label":"needs_focusing","rationale":"offline echo provider"}`, nil
	}
	return "", nil
}
