// Package redis keeps crew short-term memory in Redis lists.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	rds "github.com/redis/go-redis/v9"

	"github.com/KamdynS/property-crew/memory"
)

// ConversationStore implements memory.ConversationStore on Redis. Each
// session is one list; the TTL is refreshed on every append.
type ConversationStore struct {
	client rds.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewClient connects to the Redis server at url (redis://...) and pings it.
func NewClient(ctx context.Context, url string) (*rds.Client, error) {
	opts, err := rds.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := rds.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func NewConversationStore(client rds.UniversalClient, prefix string, ttl time.Duration) *ConversationStore {
	return &ConversationStore{client: client, prefix: prefix, ttl: ttl}
}

func (cs *ConversationStore) convKey(sessionID string) string {
	p := cs.prefix
	if p != "" {
		p += ":"
	}
	return fmt.Sprintf("%srun:%s", p, sessionID)
}

func (cs *ConversationStore) AppendMessage(ctx context.Context, sessionID string, msg memory.Message) error {
	key := cs.convKey(sessionID)
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	pipe := cs.client.TxPipeline()
	pipe.RPush(ctx, key, b)
	if cs.ttl > 0 {
		pipe.Expire(ctx, key, cs.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append: %w", err)
	}
	return nil
}

func (cs *ConversationStore) GetMessages(ctx context.Context, sessionID string) ([]memory.Message, error) {
	vals, err := cs.client.LRange(ctx, cs.convKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	msgs := make([]memory.Message, 0, len(vals))
	for _, v := range vals {
		var m memory.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (cs *ConversationStore) ClearSession(ctx context.Context, sessionID string) error {
	return cs.client.Del(ctx, cs.convKey(sessionID)).Err()
}

var _ memory.ConversationStore = (*ConversationStore)(nil)
