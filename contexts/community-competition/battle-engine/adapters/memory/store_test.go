package memory

import (
	"context"
	"testing"
	"time"

	"stemstation/contexts/community-competition/battle-engine/domain/entities"
)

func TestListVotesByBattleKeepsArrivalOrderOnTies(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	castAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	order := []string{"vote-1", "vote-2", "vote-3", "vote-4"}
	for _, voteID := range order {
		if err := store.SaveVote(ctx, entities.Vote{
			VoteID:    voteID,
			BattleID:  "battle-1",
			TrackID:   "track-a",
			UserID:    "user-" + voteID,
			Timestamp: castAt,
		}); err != nil {
			t.Fatalf("save %s failed: %v", voteID, err)
		}
	}

	votes, err := store.ListVotesByBattle(ctx, "battle-1")
	if err != nil {
		t.Fatalf("list votes failed: %v", err)
	}
	if len(votes) != len(order) {
		t.Fatalf("expected %d votes, got %d", len(order), len(votes))
	}
	for i, voteID := range order {
		if votes[i].VoteID != voteID {
			t.Fatalf("position %d: expected %s, got %s", i, voteID, votes[i].VoteID)
		}
	}
}

func TestListVotesByBattleUpdateKeepsSlot(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	castAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, voteID := range []string{"vote-1", "vote-2"} {
		if err := store.SaveVote(ctx, entities.Vote{
			VoteID:    voteID,
			BattleID:  "battle-1",
			TrackID:   "track-a",
			UserID:    "user-1",
			Timestamp: castAt,
		}); err != nil {
			t.Fatalf("save %s failed: %v", voteID, err)
		}
	}
	if err := store.SaveVote(ctx, entities.Vote{
		VoteID:     "vote-1",
		BattleID:   "battle-1",
		TrackID:    "track-a",
		UserID:     "user-1",
		Timestamp:  castAt,
		Superseded: true,
	}); err != nil {
		t.Fatalf("resave vote-1 failed: %v", err)
	}

	votes, err := store.ListVotesByBattle(ctx, "battle-1")
	if err != nil {
		t.Fatalf("list votes failed: %v", err)
	}
	if votes[0].VoteID != "vote-1" || !votes[0].Superseded {
		t.Fatalf("updated vote must keep its slot, got %+v", votes)
	}
	if votes[1].VoteID != "vote-2" {
		t.Fatalf("expected vote-2 second, got %s", votes[1].VoteID)
	}
}
