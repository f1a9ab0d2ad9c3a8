// Package memory keeps the conversation log of a single session.
package memory

import (
	"errors"
	"fmt"
	"sync"
)

// Role tags who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ErrInvalidTurn is returned when a turn has an unknown role.
var ErrInvalidTurn = errors.New("invalid turn")

// Turn is one message in the conversation. Turns are values; the log only
// hands out copies, so a stored turn never changes.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurn builds a user turn.
func UserTurn(content string) Turn { return Turn{Role: RoleUser, Content: content} }

// AssistantTurn builds an assistant turn.
func AssistantTurn(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }

// Conversation is an append-only, ordered log of turns.
type Conversation struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewConversation returns an empty conversation log.
func NewConversation() *Conversation {
	return &Conversation{turns: make([]Turn, 0, 16)}
}

// Append adds turns in order. Either all turns are stored or none are.
func (c *Conversation) Append(turns ...Turn) error {
	for _, t := range turns {
		if t.Role != RoleUser && t.Role != RoleAssistant {
			return fmt.Errorf("%w: role %q", ErrInvalidTurn, t.Role)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, turns...)
	return nil
}

// Recent returns up to the last n turns in chronological order.
func (c *Conversation) Recent(n int) []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n <= 0 {
		return []Turn{}
	}
	start := len(c.turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(c.turns)-start)
	copy(out, c.turns[start:])
	return out
}

// Turns returns every stored turn in chronological order.
func (c *Conversation) Turns() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len reports the number of stored turns.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}
