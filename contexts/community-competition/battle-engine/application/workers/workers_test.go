package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"stemstation/contexts/community-competition/battle-engine/adapters/memory"
	"stemstation/contexts/community-competition/battle-engine/application/commands"
	"stemstation/contexts/community-competition/battle-engine/domain/entities"
	"stemstation/contexts/community-competition/battle-engine/ports"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type capturePublisher struct {
	topics []string
	fail   bool
}

func (p *capturePublisher) Publish(_ context.Context, topic string, _ ports.EventEnvelope) error {
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.topics = append(p.topics, topic)
	return nil
}

func seedVotingBattle(t *testing.T, store *memory.Store, battleID string, endsAt time.Time) {
	t.Helper()
	battle := entities.Battle{
		BattleID:       battleID,
		Title:          "Seeded",
		Type:           entities.BattleTypeCommunityVote,
		Status:         entities.BattleStatusVoting,
		VotingStartsAt: endsAt.Add(-4 * time.Hour),
		VotingEndsAt:   endsAt,
		Voting:         entities.DefaultVotingConfig(),
		Tracks: []entities.BattleTrack{
			{TrackID: "track-a", Title: "Alpha", SubmittedAt: endsAt.Add(-6 * time.Hour), Position: 1},
			{TrackID: "track-b", Title: "Bravo", SubmittedAt: endsAt.Add(-5 * time.Hour), Position: 2},
		},
	}
	if err := store.SaveBattle(context.Background(), battle); err != nil {
		t.Fatalf("seed battle failed: %v", err)
	}
	if err := store.SaveVote(context.Background(), entities.Vote{
		VoteID:     battleID + "-vote-1",
		BattleID:   battleID,
		TrackID:    "track-a",
		UserID:     "user-1",
		Weight:     1,
		Timestamp:  endsAt.Add(-2 * time.Hour),
		IsVerified: true,
	}); err != nil {
		t.Fatalf("seed vote failed: %v", err)
	}
}

func TestBattleCloserSettlesOverdueBattles(t *testing.T) {
	store := memory.NewStore(nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := fixedClock{now: now}

	seedVotingBattle(t, store, "battle-overdue", now.Add(-time.Hour))
	seedVotingBattle(t, store, "battle-open", now.Add(time.Hour))

	closer := BattleCloser{
		Battles: store,
		UseCase: commands.BattleUseCase{
			Battles: store,
			Votes:   store,
			Outbox:  store,
			Clock:   clock,
			IDGen:   store,
			Locks:   commands.NewBattleLocks(0),
		},
		Clock: clock,
	}

	if err := closer.RunOnce(context.Background()); err != nil {
		t.Fatalf("closer run failed: %v", err)
	}

	overdue, err := store.GetBattle(context.Background(), "battle-overdue")
	if err != nil {
		t.Fatalf("get overdue battle failed: %v", err)
	}
	if overdue.Status != entities.BattleStatusCompleted || overdue.WinnerTrackID != "track-a" {
		t.Fatalf("expected overdue battle settled, got status=%s winner=%s", overdue.Status, overdue.WinnerTrackID)
	}
	if _, found, _ := store.GetResults(context.Background(), "battle-overdue"); !found {
		t.Fatalf("worker settlement must persist results")
	}

	open, err := store.GetBattle(context.Background(), "battle-open")
	if err != nil {
		t.Fatalf("get open battle failed: %v", err)
	}
	if open.Status != entities.BattleStatusVoting {
		t.Fatalf("open battle must stay untouched, got %s", open.Status)
	}
}

func TestBattleCloserIsIdempotent(t *testing.T) {
	store := memory.NewStore(nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := fixedClock{now: now}
	seedVotingBattle(t, store, "battle-overdue", now.Add(-time.Hour))

	closer := BattleCloser{
		Battles: store,
		UseCase: commands.BattleUseCase{
			Battles: store,
			Votes:   store,
			Outbox:  store,
			Clock:   clock,
			IDGen:   store,
			Locks:   commands.NewBattleLocks(0),
		},
		Clock: clock,
	}

	if err := closer.RunOnce(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if err := closer.RunOnce(context.Background()); err != nil {
		t.Fatalf("second run must be a no-op, got %v", err)
	}
}

func TestOutboxRelayPublishesAndMarks(t *testing.T) {
	store := memory.NewStore(nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	envelope := ports.EventEnvelope{
		EventID:       "event-1",
		EventType:     "battle.completed",
		OccurredAt:    now,
		SourceService: "battle-engine",
		SchemaVersion: 1,
		PartitionKey:  "battle-1",
	}
	if err := store.AppendOutbox(context.Background(), envelope); err != nil {
		t.Fatalf("append outbox failed: %v", err)
	}

	publisher := &capturePublisher{}
	relay := OutboxRelay{
		Outbox:    store,
		Publisher: publisher,
		Clock:     fixedClock{now: now},
	}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay run failed: %v", err)
	}

	if len(publisher.topics) != 1 || publisher.topics[0] != "battle.completed" {
		t.Fatalf("unexpected published topics: %v", publisher.topics)
	}
	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("published rows must leave the pending set, got %d", len(pending))
	}
}

func TestOutboxRelayKeepsRowOnPublishFailure(t *testing.T) {
	store := memory.NewStore(nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.AppendOutbox(context.Background(), ports.EventEnvelope{
		EventID:    "event-1",
		EventType:  "battle.completed",
		OccurredAt: now,
	}); err != nil {
		t.Fatalf("append outbox failed: %v", err)
	}

	relay := OutboxRelay{
		Outbox:    store,
		Publisher: &capturePublisher{fail: true},
		Clock:     fixedClock{now: now},
	}
	if err := relay.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected relay to surface the publish failure")
	}

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("failed rows must stay pending, got %d", len(pending))
	}
}
