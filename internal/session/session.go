// Package session keeps per-session conversation history for the query engine.
//
// A Store hands out copies of a session's turns; turns are only ever appended, never edited
// or removed. Stores guarantee that concurrent first references to the same unseen id create
// exactly one history.
package session

import (
	"context"
	"errors"
	"time"
)

// Role tags who produced a Turn.
type Role string

const (
	RoleQuestion Role = "question"
	RoleAnswer   Role = "answer"
)

// Turn is one recorded message of a conversation. Immutable once appended.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a point-in-time copy of one conversation.
type Session struct {
	ID         string
	CreatedAt  time.Time
	LastAccess time.Time
	Turns      []Turn
}

// ErrEmptyID is returned when a store is asked for a session without an id.
var ErrEmptyID = errors.New("session id is required")

// Store owns session histories.
type Store interface {
	// GetOrCreate returns the session's history, creating an empty session on first reference.
	GetOrCreate(ctx context.Context, id string) (Session, error)
	// Append adds all turns to the end of the session in one step.
	Append(ctx context.Context, id string, turns ...Turn) error
	Close() error
}

// NewTurn stamps a turn with the current UTC time.
func NewTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content, Timestamp: time.Now().UTC()}
}

func copyTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
