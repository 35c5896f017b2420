package app

import (
	"strings"

	"ragchat/pkg/ai"
	"ragchat/pkg/domain"
)

// Lead-in for the system preamble when retrieval produced context blocks.
const contextLeadIn = "\nHere is some relevant information that might help answer the question:\n"

// assemblePrompt maps the chat history to role-tagged generation turns and
// folds the retrieved blocks into the system preamble. History order is
// preserved exactly as stored; assistant-authored messages map to the
// assistant role, everything else to user. No blocks means an empty preamble,
// not an omitted one.
func assemblePrompt(history []domain.Message, blocks []string) ([]ai.Turn, string) {
	turns := make([]ai.Turn, 0, len(history))
	for _, msg := range history {
		role := "user"
		if msg.Author == domain.AuthorAssistant {
			role = "assistant"
		}
		turns = append(turns, ai.Turn{Role: role, Content: msg.Content})
	}
	if len(blocks) == 0 {
		return turns, ""
	}
	preamble := contextLeadIn + strings.Join(blocks, "\n\n") + "\n\n"
	return turns, preamble
}
