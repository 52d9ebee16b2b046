package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/KamdynS/property-crew/memory"
)

func makeRedisConv(t *testing.T) *ConversationStore {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	client, err := NewClient(context.Background(), url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewConversationStore(client, "test", time.Minute)
}

func TestConversationContract_Redis(t *testing.T) {
	ctx := context.Background()
	cs := makeRedisConv(t)
	session := uuid.NewString()
	t.Cleanup(func() { _ = cs.ClearSession(ctx, session) })

	for _, c := range []string{"first", "second"} {
		if err := cs.AppendMessage(ctx, session, memory.Message{Role: "Data Specialist", Content: c}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	msgs, err := cs.GetMessages(ctx, session)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "first" || msgs[1].Timestamp == 0 {
		t.Fatalf("unexpected messages %+v", msgs)
	}

	ttl, err := cs.client.TTL(ctx, cs.convKey(session)).Result()
	if err != nil || ttl <= 0 {
		t.Fatalf("ttl not applied: %v %v", ttl, err)
	}
}

func TestNewClient_BadURL(t *testing.T) {
	if _, err := NewClient(context.Background(), "://nope"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestConvKey(t *testing.T) {
	if got := NewConversationStore(nil, "crew", 0).convKey("abc"); got != "crew:run:abc" {
		t.Fatalf("got %q", got)
	}
	if got := NewConversationStore(nil, "", 0).convKey("abc"); got != "run:abc" {
		t.Fatalf("got %q", got)
	}
}
