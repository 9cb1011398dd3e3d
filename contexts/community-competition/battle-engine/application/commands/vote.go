package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	application "stemstation/contexts/community-competition/battle-engine/application"
	"stemstation/contexts/community-competition/battle-engine/domain/entities"
	domainerrors "stemstation/contexts/community-competition/battle-engine/domain/errors"
	"stemstation/contexts/community-competition/battle-engine/domain/fraud"
	"stemstation/contexts/community-competition/battle-engine/domain/tally"
	"stemstation/contexts/community-competition/battle-engine/ports"
)

// CastVoteCommand is the write-model input for vote ingestion.
type CastVoteCommand struct {
	BattleID  string
	TrackID   string
	UserID    string
	SessionID string
	IPAddress string
}

// CastVoteResult returns final vote state and replay/change markers that the
// transport layer maps to API semantics.
type CastVoteResult struct {
	Vote       entities.Vote
	Battle     entities.Battle
	Replayed   bool
	Superseded bool
}

// VoteUseCase runs the vote ingestion pipeline under the per-battle lock:
// status and track checks, session replay, rate limiting, conflict and
// supersede handling, fraud scoring, weighting, tally recompute, and outbox
// event emission. A high fraud score never rejects a vote; the vote is
// stored unverified and excluded from tallies.
type VoteUseCase struct {
	Battles        ports.BattleRepository
	Votes          ports.VoteRepository
	Limiter        RateLimiter
	Reputation     ports.ReputationSource
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	Locks          *BattleLocks
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// CastVote records one vote. Retries with the same session_id replay the
// stored vote instead of double-counting.
func (uc VoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	battleID := strings.TrimSpace(cmd.BattleID)
	trackID := strings.TrimSpace(cmd.TrackID)
	userID := strings.TrimSpace(cmd.UserID)
	logger.Info("vote cast processing started",
		"event", "battle_vote_cast_started",
		"module", "community-competition/battle-engine",
		"layer", "application",
		"battle_id", battleID,
		"track_id", trackID,
		"user_id", userID,
	)
	if battleID == "" || trackID == "" || userID == "" {
		logger.Warn("vote cast validation failed",
			"event", "battle_vote_cast_validation_failed",
			"module", "community-competition/battle-engine",
			"layer", "application",
			"battle_id", battleID,
			"track_id", trackID,
			"user_id", userID,
		)
		return CastVoteResult{}, domainerrors.ErrInvalidBattleConfig
	}

	release, err := uc.Locks.Acquire(ctx, battleID)
	if err != nil {
		return CastVoteResult{}, err
	}
	defer release()

	battle, err := uc.Battles.GetBattle(ctx, battleID)
	if err != nil {
		return CastVoteResult{}, err
	}
	now := uc.now()
	if battle.Status != entities.BattleStatusVoting {
		return CastVoteResult{}, domainerrors.ErrBattleNotVoting
	}
	if now.After(battle.VotingEndsAt) {
		return CastVoteResult{}, domainerrors.ErrBattleNotVoting
	}
	if !battle.HasTrack(trackID) {
		return CastVoteResult{}, domainerrors.ErrTrackNotFound
	}

	sessionID := strings.TrimSpace(cmd.SessionID)
	requestHash := hashCastVoteCommand(battleID, trackID, userID, sessionID)
	if sessionID != "" {
		record, found, err := uc.Idempotency.Get(ctx, sessionKey(battleID, sessionID), now)
		if err != nil {
			return CastVoteResult{}, err
		}
		if found {
			if record.RequestHash != requestHash {
				logger.Warn("vote cast session conflict",
					"event", "battle_vote_cast_session_conflict",
					"module", "community-competition/battle-engine",
					"layer", "application",
					"battle_id", battleID,
					"user_id", userID,
					"session_id", sessionID,
				)
				return CastVoteResult{}, domainerrors.ErrIdempotencyConflict
			}
			vote, err := uc.Votes.GetVote(ctx, record.VoteID)
			if err != nil {
				return CastVoteResult{}, err
			}
			logger.Info("vote cast replayed",
				"event", "battle_vote_cast_replayed",
				"module", "community-competition/battle-engine",
				"layer", "application",
				"battle_id", battleID,
				"vote_id", vote.VoteID,
				"user_id", userID,
			)
			return CastVoteResult{Vote: vote, Battle: battle, Replayed: true}, nil
		}
	}

	if err := uc.Limiter.Check(ctx, battle, userID, now); err != nil {
		return CastVoteResult{}, err
	}

	auditLog, err := uc.Votes.ListVotesByBattle(ctx, battleID)
	if err != nil {
		return CastVoteResult{}, err
	}

	active := activeVotesByUser(auditLog, userID)
	superseded := false
	if len(active) >= battle.Voting.VotesPerUser {
		if !battle.Voting.AllowVoteChanges {
			return CastVoteResult{}, domainerrors.ErrVoteConflict
		}
		// At budget with changes allowed: retire the earliest active vote,
		// keeping it in the audit log.
		prior := active[0]
		prior.Superseded = true
		if err := uc.Votes.SaveVote(ctx, prior); err != nil {
			return CastVoteResult{}, err
		}
		for i := range auditLog {
			if auditLog[i].VoteID == prior.VoteID {
				auditLog[i].Superseded = true
			}
		}
		superseded = true
	}

	voteID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CastVoteResult{}, err
	}
	if sessionID == "" {
		sessionID, err = uc.IDGen.NewID(ctx)
		if err != nil {
			return CastVoteResult{}, err
		}
	}

	vote := entities.Vote{
		VoteID:     voteID,
		BattleID:   battleID,
		TrackID:    trackID,
		UserID:     userID,
		Weight:     1.0,
		Timestamp:  now,
		SessionID:  sessionID,
		IPAddress:  strings.TrimSpace(cmd.IPAddress),
		IsVerified: true,
	}
	if battle.Voting.WeightByUserReputation {
		vote.Weight = uc.resolveWeight(ctx, userID)
	}
	if battle.Voting.FraudDetectionEnabled {
		vote.FraudFlags = fraud.Analyze(vote, auditLog, now)
		vote.FraudScore = fraud.Score(vote.FraudFlags)
		vote.IsVerified = vote.FraudScore < fraud.VerificationThreshold
	}

	if err := uc.Votes.SaveVote(ctx, vote); err != nil {
		return CastVoteResult{}, err
	}
	if err := uc.Limiter.Record(ctx, battle, userID, vote.Weight, now); err != nil {
		return CastVoteResult{}, err
	}

	auditLog = append(auditLog, vote)
	tally.Recompute(&battle, auditLog)
	battle.UpdatedAt = now
	if err := uc.Battles.SaveBattle(ctx, battle); err != nil {
		return CastVoteResult{}, err
	}

	if err := uc.appendVoteEvent(ctx, vote, now); err != nil {
		return CastVoteResult{}, err
	}
	if err := uc.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:         sessionKey(battleID, sessionID),
		RequestHash: hashCastVoteCommand(battleID, trackID, userID, sessionID),
		VoteID:      vote.VoteID,
		ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
	}); err != nil {
		return CastVoteResult{}, err
	}

	logger.Info("vote cast recorded",
		"event", "battle_vote_cast_recorded",
		"module", "community-competition/battle-engine",
		"layer", "application",
		"battle_id", battleID,
		"vote_id", vote.VoteID,
		"track_id", trackID,
		"user_id", userID,
		"weight", vote.Weight,
		"fraud_score", vote.FraudScore,
		"is_verified", vote.IsVerified,
		"superseded_prior", superseded,
	)
	return CastVoteResult{Vote: vote, Battle: battle, Superseded: superseded}, nil
}

func (uc VoteUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc VoteUseCase) resolveIdempotencyTTL() time.Duration {
	if uc.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return uc.IdempotencyTTL
}

func (uc VoteUseCase) resolveWeight(ctx context.Context, userID string) float64 {
	logger := application.ResolveLogger(uc.Logger)
	if uc.Reputation == nil {
		return 1.0
	}
	weight, found, err := uc.Reputation.GetReputationWeight(ctx, userID)
	if err != nil {
		logger.Warn("reputation lookup failed; applying fallback weight",
			"event", "battle_reputation_lookup_failed",
			"module", "community-competition/battle-engine",
			"layer", "application",
			"user_id", userID,
			"error", err.Error(),
		)
		return 1.0
	}
	// Zero is a legitimate weight for a zero-reputation voter; only
	// missing, failed, or negative lookups fall back.
	if !found || weight < 0 {
		return 1.0
	}
	return weight
}

func (uc VoteUseCase) appendVoteEvent(ctx context.Context, vote entities.Vote, occurredAt time.Time) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newBattleEnvelope(eventID, "battle.vote_cast", vote.BattleID, occurredAt, map[string]any{
		"battle_id":   vote.BattleID,
		"vote_id":     vote.VoteID,
		"track_id":    vote.TrackID,
		"user_id":     vote.UserID,
		"weight":      vote.Weight,
		"fraud_score": vote.FraudScore,
		"is_verified": vote.IsVerified,
		"occurred_at": occurredAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

// activeVotesByUser returns the user's non-superseded votes ordered oldest
// first, so supersede retires the earliest one.
func activeVotesByUser(votes []entities.Vote, userID string) []entities.Vote {
	var active []entities.Vote
	for _, vote := range votes {
		if vote.UserID == userID && !vote.Superseded {
			active = append(active, vote)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Timestamp.Before(active[j].Timestamp)
	})
	return active
}

func sessionKey(battleID string, sessionID string) string {
	return battleID + "/" + sessionID
}

func hashCastVoteCommand(battleID string, trackID string, userID string, sessionID string) string {
	payload := map[string]string{
		"battle_id":  battleID,
		"track_id":   trackID,
		"user_id":    userID,
		"session_id": sessionID,
		"op":         "cast_vote",
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
