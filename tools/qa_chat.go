package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"recipeassistant/memory"
)

// HistoryWindow is the number of most recent turns used as Q&A context.
const HistoryWindow = 10

const qaTemplate = `Use the following context to respond to the user's message if relevant:
context: %s
message: %s`

// Completer is a general-purpose text-completion oracle.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// History exposes the recent turns of the conversation.
type History interface {
	Recent(n int) []memory.Turn
}

type QAChat struct {
	llm     Completer
	history History
}

func NewQAChat(llm Completer, history History) *QAChat {
	return &QAChat{llm: llm, history: history}
}

func (t *QAChat) Name() string  { return "qa_chat" }
func (t *QAChat) Title() string { return "QA Chat" }
func (t *QAChat) Description() string {
	return "Handles general Q&A, including questions about the chat history."
}

func (t *QAChat) InputSchema() *jsonschema.Schema {
	return textInputSchema("The user's question or message.")
}

func (t *QAChat) Invoke(ctx context.Context, message string) (string, error) {
	answer, err := t.llm.Complete(ctx, t.prompt(message))
	if err != nil {
		return "", fmt.Errorf("qa completion: %w", err)
	}
	return answer, nil
}

// prompt renders the completion prompt with the last HistoryWindow turns, oldest first.
func (t *QAChat) prompt(message string) string {
	turns := t.history.Recent(HistoryWindow)
	contents := make([]string, 0, len(turns))
	for _, turn := range turns {
		contents = append(contents, turn.Content)
	}
	return fmt.Sprintf(qaTemplate, strings.Join(contents, "\n"), message)
}
