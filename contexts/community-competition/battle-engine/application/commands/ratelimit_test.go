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

func limiterBattle() entities.Battle {
	return entities.Battle{
		BattleID: "battle-1",
		Voting: entities.VotingConfig{
			VotesPerUser:       10,
			RateLimitPerMinute: 3,
			DailyVoteLimit:     5,
		},
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	store := memory.NewStore(nil)
	limiter := RateLimiter{Limits: store}
	battle := limiterBattle()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		at := now.Add(time.Duration(i) * 10 * time.Second)
		if err := limiter.Check(ctx, battle, "user-1", at); err != nil {
			t.Fatalf("check %d failed: %v", i, err)
		}
		if err := limiter.Record(ctx, battle, "user-1", 1, at); err != nil {
			t.Fatalf("record %d failed: %v", i, err)
		}
	}

	blocked := now.Add(30 * time.Second)
	err := limiter.Check(ctx, battle, "user-1", blocked)
	if !errors.Is(err, domainerrors.ErrRateLimited) {
		t.Fatalf("expected per-minute limit, got %v", err)
	}
	var limitErr *domainerrors.RateLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected RateLimitError, got %T", err)
	}
	// Oldest vote at t+0 leaves the window at t+60.
	if limitErr.RetryAfter != 30*time.Second {
		t.Fatalf("expected 30s retry-after, got %s", limitErr.RetryAfter)
	}

	if err := limiter.Check(ctx, battle, "user-1", now.Add(61*time.Second)); err != nil {
		t.Fatalf("window must slide open again, got %v", err)
	}
}

func TestRateLimiterCooldown(t *testing.T) {
	store := memory.NewStore(nil)
	limiter := RateLimiter{Limits: store}
	battle := limiterBattle()
	battle.Voting.CooldownBetweenVotes = 45
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := limiter.Record(ctx, battle, "user-1", 1, now); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	err := limiter.Check(ctx, battle, "user-1", now.Add(15*time.Second))
	var limitErr *domainerrors.RateLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected cooldown rejection, got %v", err)
	}
	if limitErr.RetryAfter != 30*time.Second {
		t.Fatalf("expected 30s retry-after, got %s", limitErr.RetryAfter)
	}

	if err := limiter.Check(ctx, battle, "user-1", now.Add(46*time.Second)); err != nil {
		t.Fatalf("expected cooldown to expire, got %v", err)
	}
}

func TestRateLimiterDailyWindowResetsOnRead(t *testing.T) {
	store := memory.NewStore(nil)
	limiter := RateLimiter{Limits: store}
	battle := limiterBattle()
	battle.Voting.RateLimitPerMinute = 100
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		at := now.Add(time.Duration(i) * 2 * time.Minute)
		if err := limiter.Record(ctx, battle, "user-1", 1, at); err != nil {
			t.Fatalf("record %d failed: %v", i, err)
		}
	}

	err := limiter.Check(ctx, battle, "user-1", now.Add(11*time.Minute))
	if !errors.Is(err, domainerrors.ErrRateLimited) {
		t.Fatalf("expected daily limit, got %v", err)
	}

	// The stale record must not block once the 24h window has passed.
	if err := limiter.Check(ctx, battle, "user-1", now.Add(24*time.Hour+time.Minute)); err != nil {
		t.Fatalf("expected daily window reset, got %v", err)
	}

	if err := limiter.Record(ctx, battle, "user-1", 1, now.Add(24*time.Hour+time.Minute)); err != nil {
		t.Fatalf("record after reset failed: %v", err)
	}
	record, found, err := store.GetRateLimit(ctx, "user-1", battle.BattleID)
	if err != nil || !found {
		t.Fatalf("rate limit record missing: found=%v err=%v", found, err)
	}
	if record.DailyUsed != 1 {
		t.Fatalf("expected daily counter restarted at 1, got %d", record.DailyUsed)
	}
	if record.VotesCast != 6 {
		t.Fatalf("lifetime counter must keep growing, got %d", record.VotesCast)
	}
}

func TestRateLimiterUnknownUserPasses(t *testing.T) {
	store := memory.NewStore(nil)
	limiter := RateLimiter{Limits: store}

	if err := limiter.Check(context.Background(), limiterBattle(), "user-9", time.Now().UTC()); err != nil {
		t.Fatalf("first-time voters must pass, got %v", err)
	}
}
