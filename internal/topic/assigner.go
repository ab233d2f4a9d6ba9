package topic

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ashureev/horizon-coach/internal/domain"
)

const (
	initialMastery = 0.5
	nameTokens     = 3
	seedKeywords   = 5
)

// Assigner performs greedy single-pass clustering: each turn joins the
// existing topic sharing the most keywords or starts a new one. Existing
// topics are never merged with each other.
type Assigner struct {
	NewID func() string
}

// NewAssigner returns an assigner that issues random UUID topic ids.
func NewAssigner() *Assigner {
	return &Assigner{NewID: uuid.NewString}
}

// Assign files text under a topic in idx, mutating idx, and returns the topic.
func (a *Assigner) Assign(idx *Index, text string) *domain.Topic {
	tokens := Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}

	var best *domain.Topic
	bestOverlap := 0
	for _, t := range idx.All() {
		overlap := 0
		for _, kw := range t.Keywords {
			if _, ok := set[kw]; ok {
				overlap++
			}
		}
		if overlap > bestOverlap {
			best, bestOverlap = t, overlap
		}
	}

	if best != nil {
		best.Keywords = mergeKeywords(best.Keywords, tokens)
		best.MessageCount++
		return best
	}

	t := &domain.Topic{
		ID:           a.newID(),
		Name:         topicName(tokens, idx.Len()+1),
		Keywords:     append([]string(nil), tokens[:min(seedKeywords, len(tokens))]...),
		MessageCount: 1,
		Mastery:      initialMastery,
	}
	idx.Add(t)
	return t
}

func (a *Assigner) newID() string {
	if a.NewID != nil {
		return a.NewID()
	}
	return uuid.NewString()
}

func mergeKeywords(existing, tokens []string) []string {
	merged := append([]string(nil), existing...)
	have := make(map[string]struct{}, len(existing))
	for _, kw := range existing {
		have[kw] = struct{}{}
	}
	for _, tok := range tokens {
		if _, ok := have[tok]; ok {
			continue
		}
		have[tok] = struct{}{}
		merged = append(merged, tok)
	}
	if len(merged) > domain.MaxTopicKeywords {
		merged = merged[:domain.MaxTopicKeywords]
	}
	return merged
}

func topicName(tokens []string, n int) string {
	if len(tokens) == 0 {
		return fmt.Sprintf("Topic %d", n)
	}
	words := make([]string, 0, nameTokens)
	for _, tok := range tokens[:min(nameTokens, len(tokens))] {
		words = append(words, titleCase(tok))
	}
	return strings.Join(words, " ")
}

func titleCase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToTitle(r)) + s[size:]
}
