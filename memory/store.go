package memory

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a store holds nothing for the requested key.
var ErrNotFound = errors.New("memory: not found")

// ConversationStore keeps the short-term memory of one crew run: the
// ordered outputs its agents produced so far.
type ConversationStore interface {
	// AppendMessage adds a message to the session
	AppendMessage(ctx context.Context, sessionID string, msg Message) error

	// GetMessages retrieves the session history, oldest first
	GetMessages(ctx context.Context, sessionID string) ([]Message, error)

	// ClearSession removes all messages for a session
	ClearSession(ctx context.Context, sessionID string) error
}

// Message is one entry of short-term memory.
type Message struct {
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Timestamp int64             `json:"timestamp"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// LongTermStore remembers task results across runs, keyed by address and
// task.
type LongTermStore interface {
	Save(ctx context.Context, rec Record) error
	// Latest returns the newest record for address and task, or ErrNotFound.
	Latest(ctx context.Context, address, task string) (*Record, error)
}

// Record is one remembered task result.
type Record struct {
	Address   string    `json:"address"`
	Task      string    `json:"task"`
	Agent     string    `json:"agent"`
	Output    string    `json:"output"`
	CreatedAt time.Time `json:"created_at"`
}
