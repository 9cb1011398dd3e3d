package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"stemstation/contexts/community-competition/battle-engine/adapters/memory"
	"stemstation/contexts/community-competition/battle-engine/domain/entities"
	domainerrors "stemstation/contexts/community-competition/battle-engine/domain/errors"
)

type stubClock struct {
	now time.Time
}

func (c *stubClock) Now() time.Time {
	return c.now
}

func (c *stubClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newStubClock() *stubClock {
	return &stubClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func newEngine(store *memory.Store, clock *stubClock) (BattleUseCase, VoteUseCase) {
	locks := NewBattleLocks(0)
	battles := BattleUseCase{
		Battles: store,
		Votes:   store,
		Outbox:  store,
		Clock:   clock,
		IDGen:   store,
		Locks:   locks,
	}
	votes := VoteUseCase{
		Battles:     store,
		Votes:       store,
		Limiter:     RateLimiter{Limits: store},
		Reputation:  store,
		Idempotency: store,
		Outbox:      store,
		Clock:       clock,
		IDGen:       store,
		Locks:       locks,
	}
	return battles, votes
}

func strictVotingConfig() *entities.VotingConfig {
	return &entities.VotingConfig{
		VotesPerUser:          1,
		AllowVoteChanges:      true,
		VotingDuration:        2 * time.Hour,
		FraudDetectionEnabled: true,
		RateLimitPerMinute:    5,
		CooldownBetweenVotes:  30,
		DailyVoteLimit:        10,
	}
}

func relaxedVotingConfig() *entities.VotingConfig {
	return &entities.VotingConfig{
		VotesPerUser:          10,
		AllowVoteChanges:      true,
		VotingDuration:        48 * time.Hour,
		FraudDetectionEnabled: true,
		RateLimitPerMinute:    10,
		DailyVoteLimit:        50,
	}
}

func startedBattle(t *testing.T, battles BattleUseCase, voting *entities.VotingConfig) entities.Battle {
	t.Helper()
	ctx := context.Background()

	battle, err := battles.CreateBattle(ctx, CreateBattleCommand{
		Title:     "Loop Wars",
		Type:      entities.BattleTypeCommunityVote,
		CreatedBy: "host-1",
		Voting:    voting,
	})
	if err != nil {
		t.Fatalf("create battle failed: %v", err)
	}
	for _, track := range []struct{ id, title string }{
		{"track-a", "Alpha"},
		{"track-b", "Bravo"},
	} {
		if _, err := battles.AddTrack(ctx, AddTrackCommand{
			BattleID:    battle.BattleID,
			TrackID:     track.id,
			Title:       track.title,
			SubmittedBy: "artist-" + track.id,
		}); err != nil {
			t.Fatalf("add track %s failed: %v", track.id, err)
		}
	}
	battle, err = battles.StartVoting(ctx, battle.BattleID)
	if err != nil {
		t.Fatalf("start voting failed: %v", err)
	}
	return battle
}

func TestCastVoteHappyPath(t *testing.T) {
	store := memory.NewStore(nil)
	clock := newStubClock()
	battles, votes := newEngine(store, clock)
	battle := startedBattle(t, battles, strictVotingConfig())

	result, err := votes.CastVote(context.Background(), CastVoteCommand{
		BattleID:  battle.BattleID,
		TrackID:   "track-a",
		UserID:    "user-1",
		IPAddress: "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}
	if !result.Vote.IsVerified || result.Vote.Weight != 1 {
		t.Fatalf("unexpected vote: %+v", result.Vote)
	}
	if result.Vote.SessionID == "" {
		t.Fatalf("session id must be generated when absent")
	}
	if result.Battle.TotalVotes != 1 {
		t.Fatalf("expected tally total 1, got %f", result.Battle.TotalVotes)
	}
	if result.Battle.Tracks[0].TrackID != "track-a" || result.Battle.Tracks[0].VotePercentage != 100 {
		t.Fatalf("unexpected leader: %+v", result.Battle.Tracks[0])
	}

	pending, err := store.ListPendingOutbox(context.Background(), 100)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	found := false
	for _, row := range pending {
		if row.EventType == "battle.vote_cast" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a battle.vote_cast outbox row, got %d rows", len(pending))
	}
}

func TestCastVoteSessionReplay(t *testing.T) {
	store := memory.NewStore(nil)
	clock := newStubClock()
	battles, votes := newEngine(store, clock)
	battle := startedBattle(t, battles, strictVotingConfig())

	cmd := CastVoteCommand{
		BattleID:  battle.BattleID,
		TrackID:   "track-a",
		UserID:    "user-1",
		SessionID: "session-1",
	}
	first, err := votes.CastVote(context.Background(), cmd)
	if err != nil {
		t.Fatalf("first cast failed: %v", err)
	}

	clock.Advance(40 * time.Second)
	second, err := votes.CastVote(context.Background(), cmd)
	if err != nil {
		t.Fatalf("replay cast failed: %v", err)
	}
	if !second.Replayed {
		t.Fatalf("expected replayed result")
	}
	if first.Vote.VoteID != second.Vote.VoteID {
		t.Fatalf("replay must return the stored vote, got %s and %s", first.Vote.VoteID, second.Vote.VoteID)
	}

	log, err := store.ListVotesByBattle(context.Background(), battle.BattleID)
	if err != nil {
		t.Fatalf("list votes failed: %v", err)
	}
	if len(log) != 1 {
		t.Fatalf("replay must not append to the log, got %d votes", len(log))
	}
}

func TestCastVoteSessionConflict(t *testing.T) {
	store := memory.NewStore(nil)
	clock := newStubClock()
	battles, votes := newEngine(store, clock)
	battle := startedBattle(t, battles, strictVotingConfig())

	if _, err := votes.CastVote(context.Background(), CastVoteCommand{
		BattleID:  battle.BattleID,
		TrackID:   "track-a",
		UserID:    "user-1",
		SessionID: "session-1",
	}); err != nil {
		t.Fatalf("first cast failed: %v", err)
	}

	clock.Advance(40 * time.Second)
	_, err := votes.CastVote(context.Background(), CastVoteCommand{
		BattleID:  battle.BattleID,
		TrackID:   "track-b",
		UserID:    "user-1",
		SessionID: "session-1",
	})
	if !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}

func TestCastVoteCooldown(t *testing.T) {
	store := memory.NewStore(nil)
	clock := newStubClock()
	battles, votes := newEngine(store, clock)
	battle := startedBattle(t, battles, strictVotingConfig())

	if _, err := votes.CastVote(context.Background(), CastVoteCommand{
		BattleID: battle.BattleID,
		TrackID:  "track-a",
		UserID:   "user-1",
	}); err != nil {
		t.Fatalf("first cast failed: %v", err)
	}

	clock.Advance(10 * time.Second)
	_, err := votes.CastVote(context.Background(), CastVoteCommand{
		BattleID: battle.BattleID,
		TrackID:  "track-b",
		UserID:   "user-1",
	})
	if !errors.Is(err, domainerrors.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	var limitErr *domainerrors.RateLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected RateLimitError, got %T", err)
	}
	if limitErr.RetryAfter != 20*time.Second {
		t.Fatalf("expected 20s retry-after, got %s", limitErr.RetryAfter)
	}
}

func TestCastVoteSupersedesEarliestWhenAtBudget(t *testing.T) {
	store := memory.NewStore(nil)
	clock := newStubClock()
	battles, votes := newEngine(store, clock)
	battle := startedBattle(t, battles, strictVotingConfig())

	first, err := votes.CastVote(context.Background(), CastVoteCommand{
		BattleID: battle.BattleID,
		TrackID:  "track-a",
		UserID:   "user-1",
	})
	if err != nil {
		t.Fatalf("first cast failed: %v", err)
	}

	clock.Advance(40 * time.Second)
	second, err := votes.CastVote(context.Background(), CastVoteCommand{
		BattleID: battle.BattleID,
		TrackID:  "track-b",
		UserID:   "user-1",
	})
	if err != nil {
		t.Fatalf("vote change failed: %v", err)
	}
	if !second.Superseded {
		t.Fatalf("expected the prior vote to be superseded")
	}

	prior, err := store.GetVote(context.Background(), first.Vote.VoteID)
	if err != nil {
		t.Fatalf("get prior vote failed: %v", err)
	}
	if !prior.Superseded {
		t.Fatalf("prior vote must stay in the log marked superseded")
	}
	if second.Battle.TotalVotes != 1 || second.Battle.Tracks[0].TrackID != "track-b" {
		t.Fatalf("tally must count only the replacement vote: %+v", second.Battle.Tracks)
	}
}

func TestCastVoteConflictWhenChangesDisallowed(t *testing.T) {
	store := memory.NewStore(nil)
	clock := newStubClock()
	battles, votes := newEngine(store, clock)
	config := strictVotingConfig()
	config.AllowVoteChanges = false
	battle := startedBattle(t, battles, config)

	if _, err := votes.CastVote(context.Background(), CastVoteCommand{
		BattleID: battle.BattleID,
		TrackID:  "track-a",
		UserID:   "user-1",
	}); err != nil {
		t.Fatalf("first cast failed: %v", err)
	}

	clock.Advance(40 * time.Second)
	_, err := votes.CastVote(context.Background(), CastVoteCommand{
		BattleID: battle.BattleID,
		TrackID:  "track-b",
		UserID:   "user-1",
	})
	if !errors.Is(err, domainerrors.ErrVoteConflict) {
		t.Fatalf("expected vote conflict, got %v", err)
	}
}

func TestCastVoteDailyLimitRollsOver(t *testing.T) {
	store := memory.NewStore(nil)
	clock := newStubClock()
	battles, votes := newEngine(store, clock)
	config := relaxedVotingConfig()
	config.DailyVoteLimit = 2
	battle := startedBattle(t, battles, config)

	for i := 0; i < 2; i++ {
		if _, err := votes.CastVote(context.Background(), CastVoteCommand{
			BattleID: battle.BattleID,
			TrackID:  "track-a",
			UserID:   "user-1",
		}); err != nil {
			t.Fatalf("cast %d failed: %v", i, err)
		}
		clock.Advance(2 * time.Minute)
	}

	_, err := votes.CastVote(context.Background(), CastVoteCommand{
		BattleID: battle.BattleID,
		TrackID:  "track-a",
		UserID:   "user-1",
	})
	if !errors.Is(err, domainerrors.ErrRateLimited) {
		t.Fatalf("expected daily limit rejection, got %v", err)
	}

	clock.Advance(25 * time.Hour)
	if _, err := votes.CastVote(context.Background(), CastVoteCommand{
		BattleID: battle.BattleID,
		TrackID:  "track-a",
		UserID:   "user-1",
	}); err != nil {
		t.Fatalf("vote after daily window rollover failed: %v", err)
	}
}

func TestCastVoteUnknownTrack(t *testing.T) {
	store := memory.NewStore(nil)
	clock := newStubClock()
	battles, votes := newEngine(store, clock)
	battle := startedBattle(t, battles, strictVotingConfig())

	_, err := votes.CastVote(context.Background(), CastVoteCommand{
		BattleID: battle.BattleID,
		TrackID:  "track-z",
		UserID:   "user-1",
	})
	if !errors.Is(err, domainerrors.ErrTrackNotFound) {
		t.Fatalf("expected track not found, got %v", err)
	}
}

func TestCastVoteAfterWindowCloses(t *testing.T) {
	store := memory.NewStore(nil)
	clock := newStubClock()
	battles, votes := newEngine(store, clock)
	battle := startedBattle(t, battles, strictVotingConfig())

	clock.Advance(3 * time.Hour)
	_, err := votes.CastVote(context.Background(), CastVoteCommand{
		BattleID: battle.BattleID,
		TrackID:  "track-a",
		UserID:   "user-1",
	})
	if !errors.Is(err, domainerrors.ErrBattleNotVoting) {
		t.Fatalf("expected battle not voting after the window, got %v", err)
	}
}

func TestCastVoteFlaggedVoteStoredButNotCounted(t *testing.T) {
	store := memory.NewStore(nil)
	clock := newStubClock()
	battles, votes := newEngine(store, clock)
	battle := startedBattle(t, battles, relaxedVotingConfig())

	var last CastVoteResult
	var err error
	for i := 0; i < 4; i++ {
		last, err = votes.CastVote(context.Background(), CastVoteCommand{
			BattleID: battle.BattleID,
			TrackID:  "track-a",
			UserID:   "user-1",
		})
		if err != nil {
			t.Fatalf("cast %d failed: %v", i, err)
		}
		clock.Advance(5 * time.Second)
	}

	if last.Vote.IsVerified {
		t.Fatalf("fourth rapid vote must be flagged")
	}
	if last.Vote.FraudScore < 20 {
		t.Fatalf("expected score past the verification threshold, got %f", last.Vote.FraudScore)
	}
	if last.Battle.TotalVotes != 3 {
		t.Fatalf("flagged vote must not count toward the tally, got %f", last.Battle.TotalVotes)
	}

	log, err := store.ListVotesByBattle(context.Background(), battle.BattleID)
	if err != nil {
		t.Fatalf("list votes failed: %v", err)
	}
	if len(log) != 4 {
		t.Fatalf("flagged vote must stay in the audit log, got %d votes", len(log))
	}
}

func TestCastVoteReputationWeight(t *testing.T) {
	store := memory.NewStore(nil)
	clock := newStubClock()
	battles, votes := newEngine(store, clock)
	config := strictVotingConfig()
	config.WeightByUserReputation = true
	battle := startedBattle(t, battles, config)
	store.SetReputationWeight("user-1", 2.5)

	weighted, err := votes.CastVote(context.Background(), CastVoteCommand{
		BattleID: battle.BattleID,
		TrackID:  "track-a",
		UserID:   "user-1",
	})
	if err != nil {
		t.Fatalf("weighted cast failed: %v", err)
	}
	if weighted.Vote.Weight != 2.5 {
		t.Fatalf("expected reputation weight 2.5, got %f", weighted.Vote.Weight)
	}

	clock.Advance(time.Minute)
	plain, err := votes.CastVote(context.Background(), CastVoteCommand{
		BattleID: battle.BattleID,
		TrackID:  "track-b",
		UserID:   "user-2",
	})
	if err != nil {
		t.Fatalf("fallback cast failed: %v", err)
	}
	if plain.Vote.Weight != 1 {
		t.Fatalf("unknown voter must fall back to weight 1, got %f", plain.Vote.Weight)
	}
	if plain.Battle.TotalVotes != 3.5 {
		t.Fatalf("expected weighted total 3.5, got %f", plain.Battle.TotalVotes)
	}

	store.SetReputationWeight("user-3", 0)
	clock.Advance(time.Minute)
	muted, err := votes.CastVote(context.Background(), CastVoteCommand{
		BattleID: battle.BattleID,
		TrackID:  "track-b",
		UserID:   "user-3",
	})
	if err != nil {
		t.Fatalf("zero-weight cast failed: %v", err)
	}
	if muted.Vote.Weight != 0 {
		t.Fatalf("zero reputation must carry weight 0, got %f", muted.Vote.Weight)
	}
	if muted.Battle.TotalVotes != 3.5 {
		t.Fatalf("zero-weight vote must not move the total, got %f", muted.Battle.TotalVotes)
	}

	store.SetReputationWeight("user-4", -1)
	clock.Advance(time.Minute)
	repaired, err := votes.CastVote(context.Background(), CastVoteCommand{
		BattleID: battle.BattleID,
		TrackID:  "track-b",
		UserID:   "user-4",
	})
	if err != nil {
		t.Fatalf("negative-weight cast failed: %v", err)
	}
	if repaired.Vote.Weight != 1 {
		t.Fatalf("negative reputation must fall back to weight 1, got %f", repaired.Vote.Weight)
	}
}
