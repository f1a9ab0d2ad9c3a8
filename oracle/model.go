// Package oracle turns a chat model into the decision maker of the router and
// into the text, extraction and translation helpers the tools rely on.
package oracle

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FunctionSpec declares a function the model may call.
type FunctionSpec struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// FunctionCall is a function call emitted by the model. Arguments hold the
// raw JSON object the model produced.
type FunctionCall struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ChatRequest is a provider-neutral chat completion request.
type ChatRequest struct {
	System    string         `json:"system,omitempty"`
	Messages  []Message      `json:"messages"`
	Functions []FunctionSpec `json:"functions,omitempty"`

	// ForceFunction, when set, requires the model to call the named function.
	ForceFunction string `json:"force_function,omitempty"`
}

type ChatResponse struct {
	Content string         `json:"content,omitempty"`
	Calls   []FunctionCall `json:"calls,omitempty"`
}

// ChatModel is implemented by every backend (OpenAI, Bedrock, Ollama, mock).
type ChatModel interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// SchemaMap converts a schema into a plain map for SDKs that take untyped
// JSON objects. A nil schema becomes an empty object schema.
func SchemaMap(s *jsonschema.Schema) (map[string]any, error) {
	if s == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
