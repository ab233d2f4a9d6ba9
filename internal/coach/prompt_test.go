package coach

import (
	"testing"

	"github.com/ashureev/horizon-coach/internal/domain"
	"github.com/ashureev/horizon-coach/internal/llm"
)

func TestBuildPrompt(t *testing.T) {
	if got := BuildPrompt("why?", "", nil); got != "Question:\nwhy?" {
		t.Fatalf("unexpected bare prompt %q", got)
	}

	got := BuildPrompt("why?", "  lesson 2 ", Metadata{{Key: "b", Value: 2}, {Key: "a", Value: "x"}})
	want := "Context:\nlesson 2\n\nMetadata:\n- b: 2\n- a: x\n\nQuestion:\nwhy?"
	if got != want {
		t.Fatalf("BuildPrompt() = %q, want %q", got, want)
	}
}

func TestModelMessages_SkipsSystemTurnsAndBoundsHistory(t *testing.T) {
	var history []domain.Turn
	for i := 0; i < historyLimit+5; i++ {
		history = append(history, domain.Turn{Role: domain.RoleLearner, Content: "q"})
	}
	history = append(history, domain.Turn{Role: domain.RoleSystem, Content: "note"})

	msgs := modelMessages(domain.ModeGuidance, history, "now")
	if msgs[0].Role != llm.RoleSystem || msgs[0].Content != guidanceSystemPrompt {
		t.Fatalf("unexpected system message %+v", msgs[0])
	}
	if last := msgs[len(msgs)-1]; last.Content != "now" || last.Role != llm.RoleUser {
		t.Fatalf("unexpected final message %+v", last)
	}
	if len(msgs) != historyLimit+1 {
		t.Fatalf("expected %d messages, got %d", historyLimit+1, len(msgs))
	}
}
