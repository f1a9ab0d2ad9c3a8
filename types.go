package recipeassistant

import (
	"context"
	"net/http"

	"recipeassistant/tools"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type ToolProvider interface {
	GetTools() []tools.Tool
	GetTool(name string) (tools.Tool, error)
}

// Router answers one user message at a time for a single conversation.
type Router interface {
	Handle(ctx context.Context, message string) (string, error)
}
