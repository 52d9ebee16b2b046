package inmemory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/KamdynS/property-crew/memory"
)

type session struct {
	messages []memory.Message
	touched  time.Time
}

// ConversationStore implements memory.ConversationStore in process memory.
// Sessions idle for longer than the TTL are dropped.
type ConversationStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
}

// NewConversationStore creates a store; ttl <= 0 keeps sessions forever.
func NewConversationStore(ttl time.Duration) *ConversationStore {
	return &ConversationStore{
		sessions: make(map[string]*session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// AppendMessage implements memory.ConversationStore interface
func (cs *ConversationStore) AppendMessage(ctx context.Context, sessionID string, msg memory.Message) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	now := cs.now()
	cs.sweep(now)
	if msg.Timestamp == 0 {
		msg.Timestamp = now.Unix()
	}
	s, ok := cs.sessions[sessionID]
	if !ok {
		s = &session{}
		cs.sessions[sessionID] = s
	}
	s.messages = append(s.messages, msg)
	s.touched = now
	return nil
}

// GetMessages implements memory.ConversationStore interface
func (cs *ConversationStore) GetMessages(ctx context.Context, sessionID string) ([]memory.Message, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.sweep(cs.now())
	s, ok := cs.sessions[sessionID]
	if !ok {
		return []memory.Message{}, nil
	}
	out := make([]memory.Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

// ClearSession implements memory.ConversationStore interface
func (cs *ConversationStore) ClearSession(ctx context.Context, sessionID string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.sessions, sessionID)
	return nil
}

// Len reports the number of live sessions.
func (cs *ConversationStore) Len() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.sweep(cs.now())
	return len(cs.sessions)
}

// sweep must be called with mu held.
func (cs *ConversationStore) sweep(now time.Time) {
	if cs.ttl <= 0 {
		return
	}
	for id, s := range cs.sessions {
		if now.Sub(s.touched) > cs.ttl {
			delete(cs.sessions, id)
		}
	}
}

// LongTermStore implements memory.LongTermStore in process memory. It backs
// tests and single-process deployments without a database, so it keeps only
// the newest record per address and task.
type LongTermStore struct {
	mu      sync.RWMutex
	records map[string]memory.Record
}

// NewLongTermStore creates an empty long-term store.
func NewLongTermStore() *LongTermStore {
	return &LongTermStore{records: make(map[string]memory.Record)}
}

func ltKey(address, task string) string {
	return strings.ToLower(strings.TrimSpace(address)) + "\x00" + task
}

// Save implements memory.LongTermStore interface. A record older than the
// one already held for its key is dropped.
func (l *LongTermStore) Save(ctx context.Context, rec memory.Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	k := ltKey(rec.Address, rec.Task)
	if cur, ok := l.records[k]; ok && rec.CreatedAt.Before(cur.CreatedAt) {
		return nil
	}
	l.records[k] = rec
	return nil
}

// Latest implements memory.LongTermStore interface
func (l *LongTermStore) Latest(ctx context.Context, address, task string) (*memory.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[ltKey(address, task)]
	if !ok {
		return nil, memory.ErrNotFound
	}
	return &rec, nil
}

// Len reports the number of address and task keys held.
func (l *LongTermStore) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Ensure implementations satisfy interfaces
var _ memory.ConversationStore = (*ConversationStore)(nil)
var _ memory.LongTermStore = (*LongTermStore)(nil)
