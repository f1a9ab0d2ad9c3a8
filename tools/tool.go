package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// Tool is a named capability with a single text input and a single text output.
type Tool interface {
	Name() string
	Title() string
	Description() string
	InputSchema() *jsonschema.Schema
	Invoke(ctx context.Context, input string) (output string, err error)
}

// textInputSchema is the input schema shared by every tool: one free-text argument.
func textInputSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"input": {
				Type:        "string",
				Description: description,
			},
		},
		Required: []string{"input"},
	}
}
