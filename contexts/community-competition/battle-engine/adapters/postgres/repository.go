package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"stemstation/contexts/community-competition/battle-engine/domain/entities"
	domainerrors "stemstation/contexts/community-competition/battle-engine/domain/errors"
	"stemstation/contexts/community-competition/battle-engine/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) SaveBattle(ctx context.Context, battle entities.Battle) error {
	row, err := battleModelFromEntity(battle)
	if err != nil {
		return r.logError("battle_repo_encode_battle_failed", err,
			"battle_id", strings.TrimSpace(battle.BattleID),
		)
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"title":            row.Title,
			"battle_type":      row.BattleType,
			"status":           row.Status,
			"tracks":           row.Tracks,
			"min_participants": row.MinParticipants,
			"max_participants": row.MaxParticipants,
			"starts_at":        row.StartsAt,
			"voting_starts_at": row.VotingStartsAt,
			"voting_ends_at":   row.VotingEndsAt,
			"ends_at":          row.EndsAt,
			"voting_config":    row.VotingConfig,
			"total_votes":      row.TotalVotes,
			"winner_track_id":  row.WinnerTrackID,
			"updated_at":       row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return r.logError("battle_repo_save_battle_failed", create.Error,
			"battle_id", strings.TrimSpace(battle.BattleID),
		)
	}
	return nil
}

func (r *Repository) GetBattle(ctx context.Context, battleID string) (entities.Battle, error) {
	var row battleModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(battleID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Battle{}, domainerrors.ErrBattleNotFound
		}
		return entities.Battle{}, r.logError("battle_repo_get_battle_failed", err,
			"battle_id", strings.TrimSpace(battleID),
		)
	}
	return row.toEntity()
}

func (r *Repository) ListBattlesDueForClose(ctx context.Context, now time.Time, limit int) ([]entities.Battle, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []battleModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(entities.BattleStatusVoting)).
		Where("voting_ends_at <= ?", now.UTC()).
		Order("voting_ends_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("battle_repo_list_due_battles_failed", err, "limit", limit)
	}
	items := make([]entities.Battle, 0, len(rows))
	for _, row := range rows {
		battle, err := row.toEntity()
		if err != nil {
			return nil, r.logError("battle_repo_decode_battle_failed", err, "battle_id", row.ID)
		}
		items = append(items, battle)
	}
	return items, nil
}

func (r *Repository) SaveResults(ctx context.Context, results entities.BattleResults) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return r.logError("battle_repo_encode_results_failed", err,
			"battle_id", strings.TrimSpace(results.BattleID),
		)
	}
	row := resultsModel{
		BattleID:   strings.TrimSpace(results.BattleID),
		Payload:    payload,
		ComputedAt: results.ComputedAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "battle_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"payload":     row.Payload,
			"computed_at": row.ComputedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("battle_repo_save_results_failed", create.Error,
			"battle_id", row.BattleID,
		)
	}
	return nil
}

func (r *Repository) GetResults(ctx context.Context, battleID string) (entities.BattleResults, bool, error) {
	var row resultsModel
	err := r.db.WithContext(ctx).
		Where("battle_id = ?", strings.TrimSpace(battleID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.BattleResults{}, false, nil
		}
		return entities.BattleResults{}, false, r.logError("battle_repo_get_results_failed", err,
			"battle_id", strings.TrimSpace(battleID),
		)
	}
	var results entities.BattleResults
	if err := json.Unmarshal(row.Payload, &results); err != nil {
		return entities.BattleResults{}, false, r.logError("battle_repo_decode_results_failed", err,
			"battle_id", strings.TrimSpace(battleID),
		)
	}
	return results, true, nil
}

func (r *Repository) SaveVote(ctx context.Context, vote entities.Vote) error {
	row, err := voteModelFromEntity(vote)
	if err != nil {
		return r.logError("battle_repo_encode_vote_failed", err,
			"vote_id", strings.TrimSpace(vote.VoteID),
		)
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"battle_id":   row.BattleID,
			"track_id":    row.TrackID,
			"user_id":     row.UserID,
			"weight":      row.Weight,
			"cast_at":     row.CastAt,
			"session_id":  row.SessionID,
			"ip_address":  row.IPAddress,
			"fraud_score": row.FraudScore,
			"fraud_flags": row.FraudFlags,
			"is_verified": row.IsVerified,
			"superseded":  row.Superseded,
		}),
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return r.logError("battle_repo_save_vote_failed", create.Error,
			"vote_id", strings.TrimSpace(vote.VoteID),
			"battle_id", strings.TrimSpace(vote.BattleID),
			"user_id", strings.TrimSpace(vote.UserID),
		)
	}
	return nil
}

func (r *Repository) GetVote(ctx context.Context, voteID string) (entities.Vote, error) {
	var row voteModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(voteID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Vote{}, domainerrors.ErrVoteNotFound
		}
		return entities.Vote{}, r.logError("battle_repo_get_vote_failed", err, "vote_id", strings.TrimSpace(voteID))
	}
	return row.toEntity()
}

func (r *Repository) ListVotesByBattle(ctx context.Context, battleID string) ([]entities.Vote, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("battle_id = ?", strings.TrimSpace(battleID)).
		// seq breaks cast_at ties so listings keep arrival order.
		Order("cast_at ASC, seq ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("battle_repo_list_votes_failed", err,
			"battle_id", strings.TrimSpace(battleID),
		)
	}
	items := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		vote, err := row.toEntity()
		if err != nil {
			return nil, r.logError("battle_repo_decode_vote_failed", err, "vote_id", row.ID)
		}
		items = append(items, vote)
	}
	return items, nil
}

func (r *Repository) GetRateLimit(ctx context.Context, userID string, battleID string) (entities.VoteRateLimit, bool, error) {
	var row rateLimitModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Where("battle_id = ?", strings.TrimSpace(battleID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.VoteRateLimit{}, false, nil
		}
		return entities.VoteRateLimit{}, false, r.logError("battle_repo_get_rate_limit_failed", err,
			"user_id", strings.TrimSpace(userID),
			"battle_id", strings.TrimSpace(battleID),
		)
	}
	record, err := row.toEntity()
	if err != nil {
		return entities.VoteRateLimit{}, false, r.logError("battle_repo_decode_rate_limit_failed", err,
			"user_id", strings.TrimSpace(userID),
			"battle_id", strings.TrimSpace(battleID),
		)
	}
	return record, true, nil
}

func (r *Repository) SaveRateLimit(ctx context.Context, record entities.VoteRateLimit) error {
	row, err := rateLimitModelFromEntity(record)
	if err != nil {
		return r.logError("battle_repo_encode_rate_limit_failed", err,
			"user_id", strings.TrimSpace(record.UserID),
			"battle_id", strings.TrimSpace(record.BattleID),
		)
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "battle_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"votes_cast":             row.VotesCast,
			"last_vote_at":           row.LastVoteAt,
			"cooldown_until":         row.CooldownUntil,
			"daily_limit":            row.DailyLimit,
			"daily_used":             row.DailyUsed,
			"daily_window_starts_at": row.DailyWindowStartsAt,
			"recent_vote_times":      row.RecentVoteTimes,
			"reputation_multiplier":  row.ReputationMultiplier,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("battle_repo_save_rate_limit_failed", create.Error,
			"user_id", row.UserID,
			"battle_id", row.BattleID,
		)
	}
	return nil
}

func (r *Repository) GetReputationWeight(ctx context.Context, userID string) (float64, bool, error) {
	var row reputationWeightModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		if isUndefinedTable(err) {
			// Reputation schema is optional in local development; callers fall
			// back to weight 1.0x.
			return 0, false, nil
		}
		return 0, false, r.logError("battle_repo_get_reputation_weight_failed", err,
			"user_id", strings.TrimSpace(userID),
		)
	}
	return row.Weight, true, nil
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, r.logError("battle_repo_idempotency_get_failed", err,
			"idempotency_key", strings.TrimSpace(key),
		)
	}
	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", strings.TrimSpace(key)).
			Delete(&idempotencyModel{}).Error; err != nil {
			return ports.IdempotencyRecord{}, false, r.logError("battle_repo_idempotency_expire_delete_failed", err,
				"idempotency_key", strings.TrimSpace(key),
			)
		}
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:         row.Key,
		RequestHash: row.RequestHash,
		VoteID:      row.VoteID,
		ExpiresAt:   row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:         strings.TrimSpace(record.Key),
		RequestHash: strings.TrimSpace(record.RequestHash),
		VoteID:      strings.TrimSpace(record.VoteID),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("battle_repo_idempotency_put_failed", create.Error, "idempotency_key", row.Key)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", row.Key).
		First(&existing).Error; err != nil {
		return r.logError("battle_repo_idempotency_load_existing_failed", err, "idempotency_key", row.Key)
	}
	if existing.RequestHash != row.RequestHash || existing.VoteID != row.VoteID {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("battle_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("battle_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).Error; err != nil {
		return r.logError("battle_repo_append_outbox_load_existing_failed", err,
			"outbox_id", row.OutboxID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("battle_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("battle_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "community-competition/battle-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("battle repository operation failed", fields...)
	return err
}

type battleModel struct {
	ID              string    `gorm:"column:id;primaryKey"`
	Title           string    `gorm:"column:title"`
	BattleType      string    `gorm:"column:battle_type"`
	Status          string    `gorm:"column:status"`
	Tracks          []byte    `gorm:"column:tracks;type:jsonb"`
	MinParticipants int       `gorm:"column:min_participants"`
	MaxParticipants int       `gorm:"column:max_participants"`
	StartsAt        time.Time `gorm:"column:starts_at"`
	VotingStartsAt  time.Time `gorm:"column:voting_starts_at"`
	VotingEndsAt    time.Time `gorm:"column:voting_ends_at"`
	EndsAt          time.Time `gorm:"column:ends_at"`
	VotingConfig    []byte    `gorm:"column:voting_config;type:jsonb"`
	CreatedBy       string    `gorm:"column:created_by"`
	TotalVotes      float64   `gorm:"column:total_votes"`
	WinnerTrackID   string    `gorm:"column:winner_track_id"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (battleModel) TableName() string {
	return "battles"
}

func battleModelFromEntity(battle entities.Battle) (battleModel, error) {
	tracks, err := json.Marshal(battle.Tracks)
	if err != nil {
		return battleModel{}, err
	}
	voting, err := json.Marshal(battle.Voting)
	if err != nil {
		return battleModel{}, err
	}
	row := battleModel{
		ID:              strings.TrimSpace(battle.BattleID),
		Title:           strings.TrimSpace(battle.Title),
		BattleType:      string(battle.Type),
		Status:          string(battle.Status),
		Tracks:          tracks,
		MinParticipants: battle.MinParticipants,
		MaxParticipants: battle.MaxParticipants,
		StartsAt:        battle.StartsAt.UTC(),
		VotingStartsAt:  battle.VotingStartsAt.UTC(),
		VotingEndsAt:    battle.VotingEndsAt.UTC(),
		EndsAt:          battle.EndsAt.UTC(),
		VotingConfig:    voting,
		CreatedBy:       strings.TrimSpace(battle.CreatedBy),
		TotalVotes:      battle.TotalVotes,
		WinnerTrackID:   strings.TrimSpace(battle.WinnerTrackID),
		CreatedAt:       battle.CreatedAt.UTC(),
		UpdatedAt:       battle.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row, nil
}

func (m battleModel) toEntity() (entities.Battle, error) {
	var tracks []entities.BattleTrack
	if len(m.Tracks) > 0 {
		if err := json.Unmarshal(m.Tracks, &tracks); err != nil {
			return entities.Battle{}, err
		}
	}
	var voting entities.VotingConfig
	if len(m.VotingConfig) > 0 {
		if err := json.Unmarshal(m.VotingConfig, &voting); err != nil {
			return entities.Battle{}, err
		}
	}
	return entities.Battle{
		BattleID:        m.ID,
		Title:           m.Title,
		Type:            entities.BattleType(m.BattleType),
		Status:          entities.BattleStatus(m.Status),
		Tracks:          tracks,
		MinParticipants: m.MinParticipants,
		MaxParticipants: m.MaxParticipants,
		StartsAt:        m.StartsAt.UTC(),
		VotingStartsAt:  m.VotingStartsAt.UTC(),
		VotingEndsAt:    m.VotingEndsAt.UTC(),
		EndsAt:          m.EndsAt.UTC(),
		Voting:          voting,
		CreatedBy:       m.CreatedBy,
		TotalVotes:      m.TotalVotes,
		WinnerTrackID:   m.WinnerTrackID,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}, nil
}

type voteModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	Seq        int64     `gorm:"column:seq;autoIncrement"`
	BattleID   string    `gorm:"column:battle_id"`
	TrackID    string    `gorm:"column:track_id"`
	UserID     string    `gorm:"column:user_id"`
	Weight     float64   `gorm:"column:weight"`
	CastAt     time.Time `gorm:"column:cast_at"`
	SessionID  string    `gorm:"column:session_id"`
	IPAddress  string    `gorm:"column:ip_address"`
	FraudScore float64   `gorm:"column:fraud_score"`
	FraudFlags []byte    `gorm:"column:fraud_flags;type:jsonb"`
	IsVerified bool      `gorm:"column:is_verified"`
	Superseded bool      `gorm:"column:superseded"`
}

func (voteModel) TableName() string {
	return "battle_votes"
}

func voteModelFromEntity(vote entities.Vote) (voteModel, error) {
	flags, err := json.Marshal(vote.FraudFlags)
	if err != nil {
		return voteModel{}, err
	}
	return voteModel{
		ID:         strings.TrimSpace(vote.VoteID),
		BattleID:   strings.TrimSpace(vote.BattleID),
		TrackID:    strings.TrimSpace(vote.TrackID),
		UserID:     strings.TrimSpace(vote.UserID),
		Weight:     vote.Weight,
		CastAt:     vote.Timestamp.UTC(),
		SessionID:  strings.TrimSpace(vote.SessionID),
		IPAddress:  strings.TrimSpace(vote.IPAddress),
		FraudScore: vote.FraudScore,
		FraudFlags: flags,
		IsVerified: vote.IsVerified,
		Superseded: vote.Superseded,
	}, nil
}

func (m voteModel) toEntity() (entities.Vote, error) {
	var flags []entities.FraudFlag
	if len(m.FraudFlags) > 0 {
		if err := json.Unmarshal(m.FraudFlags, &flags); err != nil {
			return entities.Vote{}, err
		}
	}
	return entities.Vote{
		VoteID:     m.ID,
		BattleID:   m.BattleID,
		TrackID:    m.TrackID,
		UserID:     m.UserID,
		Weight:     m.Weight,
		Timestamp:  m.CastAt.UTC(),
		SessionID:  m.SessionID,
		IPAddress:  m.IPAddress,
		FraudScore: m.FraudScore,
		FraudFlags: flags,
		IsVerified: m.IsVerified,
		Superseded: m.Superseded,
	}, nil
}

type rateLimitModel struct {
	UserID               string    `gorm:"column:user_id;primaryKey"`
	BattleID             string    `gorm:"column:battle_id;primaryKey"`
	VotesCast            int       `gorm:"column:votes_cast"`
	LastVoteAt           time.Time `gorm:"column:last_vote_at"`
	CooldownUntil        time.Time `gorm:"column:cooldown_until"`
	DailyLimit           int       `gorm:"column:daily_limit"`
	DailyUsed            int       `gorm:"column:daily_used"`
	DailyWindowStartsAt  time.Time `gorm:"column:daily_window_starts_at"`
	RecentVoteTimes      []byte    `gorm:"column:recent_vote_times;type:jsonb"`
	ReputationMultiplier float64   `gorm:"column:reputation_multiplier"`
}

func (rateLimitModel) TableName() string {
	return "battle_vote_rate_limits"
}

func rateLimitModelFromEntity(record entities.VoteRateLimit) (rateLimitModel, error) {
	recent, err := json.Marshal(record.RecentVoteTimes)
	if err != nil {
		return rateLimitModel{}, err
	}
	return rateLimitModel{
		UserID:               strings.TrimSpace(record.UserID),
		BattleID:             strings.TrimSpace(record.BattleID),
		VotesCast:            record.VotesCast,
		LastVoteAt:           record.LastVoteAt.UTC(),
		CooldownUntil:        record.CooldownUntil.UTC(),
		DailyLimit:           record.DailyLimit,
		DailyUsed:            record.DailyUsed,
		DailyWindowStartsAt:  record.DailyWindowStartsAt.UTC(),
		RecentVoteTimes:      recent,
		ReputationMultiplier: record.ReputationMultiplier,
	}, nil
}

func (m rateLimitModel) toEntity() (entities.VoteRateLimit, error) {
	var recent []time.Time
	if len(m.RecentVoteTimes) > 0 {
		if err := json.Unmarshal(m.RecentVoteTimes, &recent); err != nil {
			return entities.VoteRateLimit{}, err
		}
	}
	return entities.VoteRateLimit{
		UserID:               m.UserID,
		BattleID:             m.BattleID,
		VotesCast:            m.VotesCast,
		LastVoteAt:           m.LastVoteAt.UTC(),
		CooldownUntil:        m.CooldownUntil.UTC(),
		DailyLimit:           m.DailyLimit,
		DailyUsed:            m.DailyUsed,
		DailyWindowStartsAt:  m.DailyWindowStartsAt.UTC(),
		RecentVoteTimes:      recent,
		ReputationMultiplier: m.ReputationMultiplier,
	}, nil
}

type resultsModel struct {
	BattleID   string    `gorm:"column:battle_id;primaryKey"`
	Payload    []byte    `gorm:"column:payload;type:jsonb"`
	ComputedAt time.Time `gorm:"column:computed_at"`
}

func (resultsModel) TableName() string {
	return "battle_results"
}

type reputationWeightModel struct {
	UserID string  `gorm:"column:user_id;primaryKey"`
	Weight float64 `gorm:"column:weight"`
}

func (reputationWeightModel) TableName() string {
	return "user_reputation_weights"
}

type idempotencyModel struct {
	Key         string    `gorm:"column:key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	VoteID      string    `gorm:"column:vote_id"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "battle_engine_idempotency"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "battle_outbox"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

var _ ports.BattleRepository = (*Repository)(nil)
var _ ports.VoteRepository = (*Repository)(nil)
var _ ports.RateLimitRepository = (*Repository)(nil)
var _ ports.ReputationSource = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
