package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "stemstation/contexts/community-competition/battle-engine/application"
	"stemstation/contexts/community-competition/battle-engine/domain/entities"
	domainerrors "stemstation/contexts/community-competition/battle-engine/domain/errors"
	"stemstation/contexts/community-competition/battle-engine/domain/recap"
	"stemstation/contexts/community-competition/battle-engine/domain/tally"
	"stemstation/contexts/community-competition/battle-engine/ports"
)

const (
	defaultTitle           = "Untitled Battle"
	defaultMinParticipants = 2
	defaultMaxParticipants = 16

	defaultStartOffset     = time.Hour
	defaultVotingOffset    = 2 * time.Hour
	defaultVotingEndOffset = 24 * time.Hour
	defaultEndOffset       = 25 * time.Hour
)

// CreateBattleCommand carries the creation wizard's inputs. Zero timing
// fields get the default offsets from now; a nil Voting config gets the
// engine defaults, and zero vote budgets in a supplied config are filled
// with the defaults.
type CreateBattleCommand struct {
	Title           string
	Type            entities.BattleType
	CreatedBy       string
	MinParticipants int
	MaxParticipants int
	StartsAt        time.Time
	VotingStartsAt  time.Time
	VotingEndsAt    time.Time
	EndsAt          time.Time
	Voting          *entities.VotingConfig
}

type AddTrackCommand struct {
	BattleID    string
	TrackID     string
	Title       string
	Genre       string
	SubmittedBy string
}

// BattleUseCase owns the battle lifecycle: draft assembly, the voting
// transition, final settlement, and cancellation. Lifecycle writes share the
// per-battle lock with the vote pipeline so a vote can never land on a
// battle that is concurrently settling.
type BattleUseCase struct {
	Battles ports.BattleRepository
	Votes   ports.VoteRepository
	Outbox  ports.OutboxWriter
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Locks   *BattleLocks
	Logger  *slog.Logger
}

// CreateBattle builds a draft battle with supplied or default timings.
func (uc BattleUseCase) CreateBattle(ctx context.Context, cmd CreateBattleCommand) (entities.Battle, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.now()

	if !validBattleType(cmd.Type) {
		logger.Warn("battle create validation failed",
			"event", "battle_create_validation_failed",
			"module", "community-competition/battle-engine",
			"layer", "application",
			"battle_type", string(cmd.Type),
			"created_by", strings.TrimSpace(cmd.CreatedBy),
		)
		return entities.Battle{}, domainerrors.ErrInvalidBattleConfig
	}

	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		title = defaultTitle
	}

	minParticipants := cmd.MinParticipants
	if minParticipants <= 0 {
		minParticipants = defaultMinParticipants
	}
	maxParticipants := cmd.MaxParticipants
	if maxParticipants <= 0 {
		maxParticipants = defaultMaxParticipants
		if cmd.Type == entities.BattleTypeHeadToHead {
			maxParticipants = 2
		}
	}
	if maxParticipants < minParticipants {
		logger.Warn("battle create validation failed",
			"event", "battle_create_validation_failed",
			"module", "community-competition/battle-engine",
			"layer", "application",
			"min_participants", minParticipants,
			"max_participants", maxParticipants,
		)
		return entities.Battle{}, domainerrors.ErrInvalidBattleConfig
	}

	voting := entities.DefaultVotingConfig()
	if cmd.Voting != nil {
		normalized, ok := normalizeVotingConfig(*cmd.Voting)
		if !ok {
			logger.Warn("battle create validation failed",
				"event", "battle_create_validation_failed",
				"module", "community-competition/battle-engine",
				"layer", "application",
				"reason", "voting_config",
			)
			return entities.Battle{}, domainerrors.ErrInvalidBattleConfig
		}
		voting = normalized
	}

	battle := entities.Battle{
		Title:           title,
		Type:            cmd.Type,
		Status:          entities.BattleStatusDraft,
		MinParticipants: minParticipants,
		MaxParticipants: maxParticipants,
		StartsAt:        defaultTime(cmd.StartsAt, now.Add(defaultStartOffset)),
		VotingStartsAt:  defaultTime(cmd.VotingStartsAt, now.Add(defaultVotingOffset)),
		VotingEndsAt:    defaultTime(cmd.VotingEndsAt, now.Add(defaultVotingEndOffset)),
		EndsAt:          defaultTime(cmd.EndsAt, now.Add(defaultEndOffset)),
		Voting:          voting,
		CreatedBy:       strings.TrimSpace(cmd.CreatedBy),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if !battle.VotingStartsAt.Before(battle.VotingEndsAt) {
		return entities.Battle{}, domainerrors.ErrInvalidBattleConfig
	}

	battleID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Battle{}, err
	}
	battle.BattleID = battleID

	if err := uc.Battles.SaveBattle(ctx, battle); err != nil {
		return entities.Battle{}, err
	}
	if err := uc.appendBattleEvent(ctx, "battle.created", battle, now, map[string]any{
		"battle_type": string(battle.Type),
		"created_by":  battle.CreatedBy,
	}); err != nil {
		return entities.Battle{}, err
	}

	logger.Info("battle created",
		"event", "battle_created",
		"module", "community-competition/battle-engine",
		"layer", "application",
		"battle_id", battle.BattleID,
		"battle_type", string(battle.Type),
		"created_by", battle.CreatedBy,
	)
	return battle, nil
}

// AddTrack appends a competing track to a draft battle.
func (uc BattleUseCase) AddTrack(ctx context.Context, cmd AddTrackCommand) (entities.Battle, error) {
	logger := application.ResolveLogger(uc.Logger)
	battleID := strings.TrimSpace(cmd.BattleID)
	trackID := strings.TrimSpace(cmd.TrackID)
	if battleID == "" || trackID == "" {
		return entities.Battle{}, domainerrors.ErrInvalidBattleConfig
	}

	release, err := uc.Locks.Acquire(ctx, battleID)
	if err != nil {
		return entities.Battle{}, err
	}
	defer release()

	battle, err := uc.Battles.GetBattle(ctx, battleID)
	if err != nil {
		return entities.Battle{}, err
	}
	if battle.Status != entities.BattleStatusDraft {
		return entities.Battle{}, domainerrors.ErrBattleNotDraft
	}
	if len(battle.Tracks) >= battle.MaxParticipants {
		logger.Warn("battle track rejected at capacity",
			"event", "battle_track_capacity_rejected",
			"module", "community-competition/battle-engine",
			"layer", "application",
			"battle_id", battleID,
			"track_id", trackID,
			"max_participants", battle.MaxParticipants,
		)
		return entities.Battle{}, domainerrors.ErrBattleFull
	}
	if battle.HasTrack(trackID) {
		return entities.Battle{}, domainerrors.ErrDuplicateTrack
	}

	now := uc.now()
	battle.Tracks = append(battle.Tracks, entities.BattleTrack{
		TrackID:     trackID,
		Title:       strings.TrimSpace(cmd.Title),
		Genre:       strings.TrimSpace(cmd.Genre),
		SubmittedBy: strings.TrimSpace(cmd.SubmittedBy),
		SubmittedAt: now,
		Position:    len(battle.Tracks) + 1,
	})
	battle.UpdatedAt = now

	if err := uc.Battles.SaveBattle(ctx, battle); err != nil {
		return entities.Battle{}, err
	}
	if err := uc.appendBattleEvent(ctx, "battle.track_added", battle, now, map[string]any{
		"track_id":     trackID,
		"submitted_by": strings.TrimSpace(cmd.SubmittedBy),
		"track_count":  len(battle.Tracks),
	}); err != nil {
		return entities.Battle{}, err
	}

	logger.Info("battle track added",
		"event", "battle_track_added",
		"module", "community-competition/battle-engine",
		"layer", "application",
		"battle_id", battleID,
		"track_id", trackID,
		"track_count", len(battle.Tracks),
	)
	return battle, nil
}

// StartVoting opens the voting window once the draft has enough tracks.
func (uc BattleUseCase) StartVoting(ctx context.Context, battleID string) (entities.Battle, error) {
	logger := application.ResolveLogger(uc.Logger)
	battleID = strings.TrimSpace(battleID)
	if battleID == "" {
		return entities.Battle{}, domainerrors.ErrBattleNotFound
	}

	release, err := uc.Locks.Acquire(ctx, battleID)
	if err != nil {
		return entities.Battle{}, err
	}
	defer release()

	battle, err := uc.Battles.GetBattle(ctx, battleID)
	if err != nil {
		return entities.Battle{}, err
	}
	if battle.Status != entities.BattleStatusDraft {
		return entities.Battle{}, domainerrors.ErrBattleNotDraft
	}
	if len(battle.Tracks) < battle.MinParticipants {
		logger.Warn("battle start rejected below minimum",
			"event", "battle_start_below_minimum",
			"module", "community-competition/battle-engine",
			"layer", "application",
			"battle_id", battleID,
			"track_count", len(battle.Tracks),
			"min_participants", battle.MinParticipants,
		)
		return entities.Battle{}, domainerrors.ErrNotEnoughTracks
	}

	now := uc.now()
	battle.Status = entities.BattleStatusVoting
	battle.VotingStartsAt = now
	if battle.Voting.VotingDuration > 0 {
		battle.VotingEndsAt = now.Add(battle.Voting.VotingDuration)
	}
	battle.UpdatedAt = now

	if err := uc.Battles.SaveBattle(ctx, battle); err != nil {
		return entities.Battle{}, err
	}
	if err := uc.appendBattleEvent(ctx, "battle.voting_started", battle, now, map[string]any{
		"voting_ends_at": battle.VotingEndsAt.Format(time.RFC3339),
		"track_count":    len(battle.Tracks),
	}); err != nil {
		return entities.Battle{}, err
	}

	logger.Info("battle voting started",
		"event", "battle_voting_started",
		"module", "community-competition/battle-engine",
		"layer", "application",
		"battle_id", battleID,
		"track_count", len(battle.Tracks),
	)
	return battle, nil
}

// EndBattle closes voting, settles the final tally, and persists results.
func (uc BattleUseCase) EndBattle(ctx context.Context, battleID string) (entities.BattleResults, error) {
	logger := application.ResolveLogger(uc.Logger)
	battleID = strings.TrimSpace(battleID)
	if battleID == "" {
		return entities.BattleResults{}, domainerrors.ErrBattleNotFound
	}

	release, err := uc.Locks.Acquire(ctx, battleID)
	if err != nil {
		return entities.BattleResults{}, err
	}
	defer release()

	battle, err := uc.Battles.GetBattle(ctx, battleID)
	if err != nil {
		return entities.BattleResults{}, err
	}
	if battle.Status != entities.BattleStatusVoting {
		if battle.Status == entities.BattleStatusCompleted || battle.Status == entities.BattleStatusCancelled {
			return entities.BattleResults{}, domainerrors.ErrBattleAlreadyEnded
		}
		return entities.BattleResults{}, domainerrors.ErrBattleNotVoting
	}

	votes, err := uc.Votes.ListVotesByBattle(ctx, battleID)
	if err != nil {
		return entities.BattleResults{}, err
	}

	now := uc.now()
	tally.Recompute(&battle, votes)
	battle.Status = entities.BattleStatusCompleted
	battle.EndsAt = now
	if len(battle.Tracks) > 0 && battle.TotalVotes > 0 {
		battle.WinnerTrackID = battle.Tracks[0].TrackID
	}
	battle.UpdatedAt = now

	results := entities.BattleResults{
		BattleID:      battleID,
		FinalRankings: tally.Rankings(battle),
		VoteBreakdown: recap.Breakdown(votes),
		Statistics:    recap.Statistics(battle, votes),
		FraudReport:   recap.Report(votes),
		Recap:         recap.Generate(battle, votes),
		ComputedAt:    now,
	}

	if err := uc.Battles.SaveBattle(ctx, battle); err != nil {
		return entities.BattleResults{}, err
	}
	if err := uc.Battles.SaveResults(ctx, results); err != nil {
		return entities.BattleResults{}, err
	}
	if err := uc.appendBattleEvent(ctx, "battle.completed", battle, now, map[string]any{
		"winner_track_id": battle.WinnerTrackID,
		"total_votes":     battle.TotalVotes,
	}); err != nil {
		return entities.BattleResults{}, err
	}

	logger.Info("battle completed",
		"event", "battle_completed",
		"module", "community-competition/battle-engine",
		"layer", "application",
		"battle_id", battleID,
		"winner_track_id", battle.WinnerTrackID,
		"total_votes", battle.TotalVotes,
	)
	return results, nil
}

// CancelBattle aborts a battle before completion. No results are produced.
func (uc BattleUseCase) CancelBattle(ctx context.Context, battleID string) (entities.Battle, error) {
	logger := application.ResolveLogger(uc.Logger)
	battleID = strings.TrimSpace(battleID)
	if battleID == "" {
		return entities.Battle{}, domainerrors.ErrBattleNotFound
	}

	release, err := uc.Locks.Acquire(ctx, battleID)
	if err != nil {
		return entities.Battle{}, err
	}
	defer release()

	battle, err := uc.Battles.GetBattle(ctx, battleID)
	if err != nil {
		return entities.Battle{}, err
	}
	if battle.Status != entities.BattleStatusDraft && battle.Status != entities.BattleStatusVoting {
		return entities.Battle{}, domainerrors.ErrBattleAlreadyEnded
	}

	now := uc.now()
	battle.Status = entities.BattleStatusCancelled
	battle.UpdatedAt = now
	if err := uc.Battles.SaveBattle(ctx, battle); err != nil {
		return entities.Battle{}, err
	}

	logger.Info("battle cancelled",
		"event", "battle_cancelled",
		"module", "community-competition/battle-engine",
		"layer", "application",
		"battle_id", battleID,
	)
	return battle, nil
}

// UpdateVotingConfig replaces the voting config while the battle is still a
// draft. The config is immutable once voting opens.
func (uc BattleUseCase) UpdateVotingConfig(ctx context.Context, battleID string, voting entities.VotingConfig) (entities.Battle, error) {
	logger := application.ResolveLogger(uc.Logger)
	battleID = strings.TrimSpace(battleID)
	if battleID == "" {
		return entities.Battle{}, domainerrors.ErrBattleNotFound
	}
	if voting.VotesPerUser <= 0 || voting.RateLimitPerMinute <= 0 || voting.DailyVoteLimit <= 0 {
		return entities.Battle{}, domainerrors.ErrInvalidBattleConfig
	}

	release, err := uc.Locks.Acquire(ctx, battleID)
	if err != nil {
		return entities.Battle{}, err
	}
	defer release()

	battle, err := uc.Battles.GetBattle(ctx, battleID)
	if err != nil {
		return entities.Battle{}, err
	}
	if battle.Status != entities.BattleStatusDraft {
		return entities.Battle{}, domainerrors.ErrBattleNotDraft
	}

	battle.Voting = voting
	battle.UpdatedAt = uc.now()
	if err := uc.Battles.SaveBattle(ctx, battle); err != nil {
		return entities.Battle{}, err
	}

	logger.Info("battle voting config updated",
		"event", "battle_voting_config_updated",
		"module", "community-competition/battle-engine",
		"layer", "application",
		"battle_id", battleID,
		"votes_per_user", voting.VotesPerUser,
		"fraud_detection_enabled", voting.FraudDetectionEnabled,
	)
	return battle, nil
}

func (uc BattleUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc BattleUseCase) appendBattleEvent(
	ctx context.Context,
	eventType string,
	battle entities.Battle,
	occurredAt time.Time,
	data map[string]any,
) error {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	payload := map[string]any{
		"battle_id":   battle.BattleID,
		"status":      string(battle.Status),
		"occurred_at": occurredAt.Format(time.RFC3339),
	}
	for key, value := range data {
		payload[key] = value
	}
	envelope, err := newBattleEnvelope(eventID, eventType, battle.BattleID, occurredAt, payload)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

// normalizeVotingConfig fills zero vote budgets with the engine defaults so a
// partially supplied config cannot lock every voter out of the battle. Zero
// cooldown and zero duration stay zero (no cooldown, window from the battle
// timings). Negative values are invalid.
func normalizeVotingConfig(voting entities.VotingConfig) (entities.VotingConfig, bool) {
	if voting.VotesPerUser < 0 || voting.RateLimitPerMinute < 0 ||
		voting.DailyVoteLimit < 0 || voting.CooldownBetweenVotes < 0 ||
		voting.VotingDuration < 0 {
		return entities.VotingConfig{}, false
	}
	defaults := entities.DefaultVotingConfig()
	if voting.VotesPerUser == 0 {
		voting.VotesPerUser = defaults.VotesPerUser
	}
	if voting.RateLimitPerMinute == 0 {
		voting.RateLimitPerMinute = defaults.RateLimitPerMinute
	}
	if voting.DailyVoteLimit == 0 {
		voting.DailyVoteLimit = defaults.DailyVoteLimit
	}
	return voting, true
}

func defaultTime(value time.Time, fallback time.Time) time.Time {
	if value.IsZero() {
		return fallback
	}
	return value.UTC()
}

func validBattleType(battleType entities.BattleType) bool {
	switch battleType {
	case entities.BattleTypeHeadToHead,
		entities.BattleTypeTournament,
		entities.BattleTypeBracket,
		entities.BattleTypeCommunityVote,
		entities.BattleTypeTimedChallenge:
		return true
	default:
		return false
	}
}
