// Package classifier labels learner turns as carrying reasoning or needing focus.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/horizon-coach/internal/domain"
	"github.com/ashureev/horizon-coach/internal/friction"
)

// Sources recorded on a classification.
const (
	SourceHeuristic = "heuristic"
	SourceModel     = "llm"
	SourceFallback  = "heuristic-fallback"
)

// Classifier labels a learner turn. Implementations never fail; they degrade
// to a heuristic label instead.
type Classifier interface {
	Classify(ctx context.Context, text string, history []domain.Turn) domain.Classification
}

var reasoningCues = []string{
	"because", "i think", "i tried", "i guess", "my approach", "so that",
	"which means", "therefore", "my idea", "i assume", "i expect",
}

// Heuristic labels a turn good when it is long enough or shows its reasoning.
type Heuristic struct {
	MinWords int
}

// Classify implements Classifier.
func (h Heuristic) Classify(_ context.Context, text string, _ []domain.Turn) domain.Classification {
	words := friction.CountWords(text)
	if words >= h.MinWords {
		return domain.Classification{
			Label:     domain.LabelGood,
			Rationale: fmt.Sprintf("detailed turn (%d words)", words),
			Source:    SourceHeuristic,
		}
	}
	lower := strings.ToLower(text)
	for _, cue := range reasoningCues {
		if strings.Contains(lower, cue) {
			return domain.Classification{
				Label:     domain.LabelGood,
				Rationale: fmt.Sprintf("shares reasoning (%q)", cue),
				Source:    SourceHeuristic,
			}
		}
	}
	return domain.Classification{
		Label:     domain.LabelNeedsFocusing,
		Rationale: fmt.Sprintf("short turn (%d words) without an attempt or reasoning", words),
		Source:    SourceHeuristic,
	}
}
