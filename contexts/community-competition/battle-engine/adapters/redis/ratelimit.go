package redisadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stemstation/contexts/community-competition/battle-engine/domain/entities"
	"stemstation/contexts/community-competition/battle-engine/ports"

	"github.com/go-redis/redis/v8"
)

// Rate-limit records expire on their own once the daily window plus cooldown
// slack has passed, so abandoned battles do not accumulate keys.
const recordTTL = 25 * time.Hour

// RateLimitStore keeps per-(user, battle) pacing records in Redis as JSON
// blobs. It is a drop-in RateLimitRepository for deployments where vote
// throughput makes a Postgres row per check too hot.
type RateLimitStore struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRateLimitStore(client *redis.Client, logger *slog.Logger) *RateLimitStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimitStore{
		client: client,
		logger: logger,
	}
}

func (s *RateLimitStore) GetRateLimit(ctx context.Context, userID string, battleID string) (entities.VoteRateLimit, bool, error) {
	raw, err := s.client.Get(ctx, recordKey(userID, battleID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return entities.VoteRateLimit{}, false, nil
		}
		return entities.VoteRateLimit{}, false, s.logError("battle_redis_rate_limit_get_failed", err, userID, battleID)
	}
	var record entities.VoteRateLimit
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return entities.VoteRateLimit{}, false, s.logError("battle_redis_rate_limit_decode_failed", err, userID, battleID)
	}
	return record, true, nil
}

func (s *RateLimitStore) SaveRateLimit(ctx context.Context, record entities.VoteRateLimit) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return s.logError("battle_redis_rate_limit_encode_failed", err, record.UserID, record.BattleID)
	}
	if err := s.client.Set(ctx, recordKey(record.UserID, record.BattleID), payload, recordTTL).Err(); err != nil {
		return s.logError("battle_redis_rate_limit_set_failed", err, record.UserID, record.BattleID)
	}
	return nil
}

func (s *RateLimitStore) logError(event string, err error, userID string, battleID string) error {
	s.logger.Error("battle redis rate limit operation failed",
		"event", event,
		"module", "community-competition/battle-engine",
		"layer", "adapter",
		"user_id", strings.TrimSpace(userID),
		"battle_id", strings.TrimSpace(battleID),
		"error", err.Error(),
	)
	return err
}

func recordKey(userID string, battleID string) string {
	return fmt.Sprintf("battle:ratelimit:%s:%s", strings.TrimSpace(battleID), strings.TrimSpace(userID))
}

var _ ports.RateLimitRepository = (*RateLimitStore)(nil)
