package app

import (
	"testing"

	"ragchat/pkg/domain"
)

func TestAssemblePromptMapsRolesInOrder(t *testing.T) {
	history := []domain.Message{
		{Author: domain.AuthorUser, Content: "first question", TimestampMs: 1},
		{Author: domain.AuthorAssistant, Content: "first answer", TimestampMs: 1001},
		{Author: domain.AuthorUser, Content: "second question", TimestampMs: 2000},
	}
	turns, preamble := assemblePrompt(history, nil)
	if preamble != "" {
		t.Fatalf("preamble = %q, want empty without blocks", preamble)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	wantRoles := []string{"user", "assistant", "user"}
	for i, turn := range turns {
		if turn.Role != wantRoles[i] {
			t.Fatalf("turn %d role = %q, want %q", i, turn.Role, wantRoles[i])
		}
		if turn.Content != history[i].Content {
			t.Fatalf("turn %d content = %q", i, turn.Content)
		}
	}
}

func TestAssemblePromptJoinsBlocks(t *testing.T) {
	blocks := []string{
		"Relevant information from document 'A':\nalpha",
		"Relevant information from document 'B':\nbeta",
	}
	_, preamble := assemblePrompt(nil, blocks)
	want := "\nHere is some relevant information that might help answer the question:\n" +
		"Relevant information from document 'A':\nalpha\n\n" +
		"Relevant information from document 'B':\nbeta\n\n"
	if preamble != want {
		t.Fatalf("preamble = %q, want %q", preamble, want)
	}
}
