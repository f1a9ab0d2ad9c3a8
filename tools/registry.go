package tools

import (
	"errors"
	"fmt"
	"strings"
)

// ErrToolNotFound is returned by GetTool for names that were never registered.
var ErrToolNotFound = errors.New("tool not found")

// Registry maps tool names to implementations. The set is fixed at construction.
type Registry struct {
	order  []Tool
	byName map[string]Tool
}

// NewRegistry creates a registry from the given tools, rejecting empty or duplicate names.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		order:  make([]Tool, 0, len(tools)),
		byName: make(map[string]Tool, len(tools)),
	}
	for _, t := range tools {
		if t == nil {
			return nil, fmt.Errorf("tool is nil")
		}
		name := strings.TrimSpace(t.Name())
		if name == "" {
			return nil, fmt.Errorf("tool name is empty")
		}
		if _, exists := r.byName[name]; exists {
			return nil, fmt.Errorf("tool %q already registered", name)
		}
		r.byName[name] = t
		r.order = append(r.order, t)
	}
	return r, nil
}

// GetTools returns all tools in registration order
func (r *Registry) GetTools() []Tool {
	out := make([]Tool, len(r.order))
	copy(out, r.order)
	return out
}

// GetTool retrieves a tool by name from the registry
func (r *Registry) GetTool(name string) (Tool, error) {
	tool, exists := r.byName[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	return tool, nil
}
