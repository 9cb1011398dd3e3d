package messaging

import (
	"context"
	"testing"
	"time"

	contractsv1 "stemstation/contracts/gen/events/v1"
)

func TestKafkaDeliversToSubscriber(t *testing.T) {
	bus, err := NewKafka(nil, nil)
	if err != nil {
		t.Fatalf("new kafka failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan contractsv1.Envelope, 1)
	if err := bus.Subscribe(ctx, "battle.completed", "recap-feed", func(_ context.Context, event contractsv1.Envelope) error {
		received <- event
		return nil
	}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := bus.Publish(ctx, "battle.completed", contractsv1.Envelope{
		EventID:   "event-1",
		EventType: "battle.completed",
	}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case event := <-received:
		if event.EventID != "event-1" {
			t.Fatalf("expected event-1, got %s", event.EventID)
		}
	case <-time.After(time.Second):
		t.Fatalf("subscriber never received the event")
	}
}

func TestKafkaPublishWithoutSubscribersSucceeds(t *testing.T) {
	bus, err := NewKafka(nil, nil)
	if err != nil {
		t.Fatalf("new kafka failed: %v", err)
	}
	if err := bus.Publish(context.Background(), "battle.vote_cast", contractsv1.Envelope{EventID: "event-1"}); err != nil {
		t.Fatalf("publish to empty topic failed: %v", err)
	}
}
