package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newTestPublisher(t *testing.T) (*Publisher, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewPublisherWithClient(client, zap.NewNop()), client
}

func TestPublisherVoteCast(t *testing.T) {
	publisher, client := newTestPublisher(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, Channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	publisher.VoteCast(ctx, "owner-1", "report", "rpt_1", 1)

	select {
	case msg := <-sub.Channel():
		var event VoteCastEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if event.Type != TypeVoteCast {
			t.Fatalf("event type = %q, want %q", event.Type, TypeVoteCast)
		}
		if event.OwnerID != "owner-1" || event.EntityID != "rpt_1" || event.Value != 1 {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no event received")
	}
}

func TestPublisherLeveledUp(t *testing.T) {
	publisher, client := newTestPublisher(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, Channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	publisher.LeveledUp(ctx, "user-1", 4, "Organizer")

	select {
	case msg := <-sub.Channel():
		var event LeveledUpEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if event.NewLevel != 4 || event.LevelName != "Organizer" {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no event received")
	}
}

func TestPublisherSwallowsPublishErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	publisher := NewPublisherWithClient(client, zap.NewNop())
	_ = client.Close()

	// Publishing after the client is closed must not panic or error out.
	publisher.ReportResolved(context.Background(), "user-1", "rpt_1", 108, 4)
}
