package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "stemstation/contexts/community-competition/battle-engine/application"
	"stemstation/contexts/community-competition/battle-engine/domain/entities"
	domainerrors "stemstation/contexts/community-competition/battle-engine/domain/errors"
	"stemstation/contexts/community-competition/battle-engine/ports"
)

const (
	slidingWindow = time.Minute
	dailyWindow   = 24 * time.Hour
)

// RateLimiter enforces the per-(user, battle) vote pacing rules: cooldown
// between votes, a rolling 24h daily cap, and a true 60s sliding window for
// the per-minute cap. Check and Record run under the battle lock, so the
// read-check-write sequence is safe.
type RateLimiter struct {
	Limits ports.RateLimitRepository
	Logger *slog.Logger
}

// Check validates the caller against all three limits, in cooldown, daily,
// per-minute order. Violations return *domainerrors.RateLimitError, which
// matches errors.Is(err, ErrRateLimited) and carries the retry-after hint.
func (rl RateLimiter) Check(ctx context.Context, battle entities.Battle, userID string, now time.Time) error {
	record, found, err := rl.Limits.GetRateLimit(ctx, strings.TrimSpace(userID), battle.BattleID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	if now.Before(record.CooldownUntil) {
		return rl.reject(battle, userID, &domainerrors.RateLimitError{
			Reason:     "cooldown active",
			RetryAfter: record.CooldownUntil.Sub(now),
		})
	}

	if dailyUsed(record, now) >= battle.Voting.DailyVoteLimit {
		return rl.reject(battle, userID, &domainerrors.RateLimitError{
			Reason:     "daily vote limit reached",
			RetryAfter: record.DailyWindowStartsAt.Add(dailyWindow).Sub(now),
		})
	}

	recent := pruneWindow(record.RecentVoteTimes, now)
	if len(recent) >= battle.Voting.RateLimitPerMinute {
		return rl.reject(battle, userID, &domainerrors.RateLimitError{
			Reason:     "per-minute vote limit reached",
			RetryAfter: recent[0].Add(slidingWindow).Sub(now),
		})
	}
	return nil
}

// Record books a successful vote against the caller's limits.
func (rl RateLimiter) Record(ctx context.Context, battle entities.Battle, userID string, multiplier float64, now time.Time) error {
	userID = strings.TrimSpace(userID)
	record, found, err := rl.Limits.GetRateLimit(ctx, userID, battle.BattleID)
	if err != nil {
		return err
	}
	if !found {
		record = entities.VoteRateLimit{
			UserID:              userID,
			BattleID:            battle.BattleID,
			DailyLimit:          battle.Voting.DailyVoteLimit,
			DailyWindowStartsAt: now,
		}
	}

	if !now.Before(record.DailyWindowStartsAt.Add(dailyWindow)) {
		record.DailyWindowStartsAt = now
		record.DailyUsed = 0
	}

	record.VotesCast++
	record.DailyUsed++
	record.DailyLimit = battle.Voting.DailyVoteLimit
	record.LastVoteAt = now
	record.CooldownUntil = now.Add(battle.Voting.Cooldown())
	record.RecentVoteTimes = append(pruneWindow(record.RecentVoteTimes, now), now)
	record.ReputationMultiplier = multiplier

	return rl.Limits.SaveRateLimit(ctx, record)
}

func (rl RateLimiter) reject(battle entities.Battle, userID string, limitErr *domainerrors.RateLimitError) error {
	application.ResolveLogger(rl.Logger).Warn("vote rate limited",
		"event", "battle_vote_rate_limited",
		"module", "community-competition/battle-engine",
		"layer", "application",
		"battle_id", battle.BattleID,
		"user_id", strings.TrimSpace(userID),
		"reason", limitErr.Reason,
		"retry_after", limitErr.RetryAfter.String(),
	)
	return limitErr
}

// dailyUsed applies the rolling reset on read so a stale record cannot block
// a caller whose window already expired.
func dailyUsed(record entities.VoteRateLimit, now time.Time) int {
	if !now.Before(record.DailyWindowStartsAt.Add(dailyWindow)) {
		return 0
	}
	return record.DailyUsed
}

func pruneWindow(times []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-slidingWindow)
	kept := make([]time.Time, 0, len(times))
	for _, stamp := range times {
		if stamp.After(cutoff) {
			kept = append(kept, stamp)
		}
	}
	return kept
}
