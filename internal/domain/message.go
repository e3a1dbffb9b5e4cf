package domain

import (
	"errors"
	"strings"
	"time"
)

// MessageRole represents the sender of a turn
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Label returns the export label for the role
func (r MessageRole) Label() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Valid reports whether the role is one of the known roles
func (r MessageRole) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

var (
	ErrEmptyTurn   = errors.New("turn text is empty")
	ErrInvalidRole = errors.New("invalid turn role")
)

// Turn is a single committed chat message. Turns are never mutated once appended.
type Turn struct {
	Role      MessageRole `json:"role"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewTurn creates a turn stamped with the current time
func NewTurn(role MessageRole, text string) Turn {
	return Turn{
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// Validate checks the turn invariants
func (t Turn) Validate() error {
	if !t.Role.Valid() {
		return ErrInvalidRole
	}
	if strings.TrimSpace(t.Text) == "" {
		return ErrEmptyTurn
	}
	return nil
}
