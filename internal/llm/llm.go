// Package llm talks to the language model that writes coaching replies.
package llm

import (
	"context"
	"iter"
)

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a model conversation.
type Message struct {
	Role    string
	Content string
}

// Usage reports token accounting for a completed call.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Chunk is one streamed fragment. Usage is set on the final chunk when the
// provider reports it.
type Chunk struct {
	Text  string
	Usage *Usage
}

// Streamer produces a reply token by token. Iteration stops at the first
// error; cancelling ctx aborts the upstream call.
type Streamer interface {
	Stream(ctx context.Context, messages []Message) iter.Seq2[Chunk, error]
}

// Completer produces a whole reply in one call.
type Completer interface {
	Complete(ctx context.Context, messages []Message, jsonMode bool) (string, error)
}
