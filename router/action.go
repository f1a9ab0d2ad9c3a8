package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// Oracle decides the next action for a routed turn.
type Oracle interface {
	Decide(ctx context.Context, prompt Prompt) (Action, error)
}

// Action is either a ToolCall or a FinalAnswer.
type Action interface {
	isAction()
}

// ToolCall asks the router to invoke Tool with Input.
type ToolCall struct {
	Tool  string `json:"tool"`
	Input string `json:"input"`
}

// FinalAnswer ends the turn with Text.
type FinalAnswer struct {
	Text string `json:"text"`
}

func (ToolCall) isAction()    {}
func (FinalAnswer) isAction() {}

// ToolSpec describes a registered tool to the oracle.
type ToolSpec struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema,omitempty"`
}

// Step is one tool invocation of the current turn and what it produced.
type Step struct {
	Tool   string `json:"tool"`
	Input  string `json:"input"`
	Output string `json:"output"`
	Failed bool   `json:"failed,omitempty"`
}

// String renders the step the way it is shown to the oracle.
func (s Step) String() string {
	return fmt.Sprintf("Action: %s\nAction Input: %s\nObservation: %s", s.Tool, s.Input, s.Output)
}

// Prompt is everything the oracle sees when deciding.
type Prompt struct {
	System     string     `json:"system"`
	Tools      []ToolSpec `json:"tools"`
	Scratchpad []Step     `json:"scratchpad,omitempty"`
	Message    string     `json:"message"`
}

// RenderScratchpad joins the steps of the turn, oldest first.
func (p Prompt) RenderScratchpad() string {
	parts := make([]string, len(p.Scratchpad))
	for i, s := range p.Scratchpad {
		parts[i] = s.String()
	}
	return strings.Join(parts, "\n\n")
}
