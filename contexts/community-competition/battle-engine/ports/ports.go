package ports

import (
	"context"
	"time"

	"stemstation/contexts/community-competition/battle-engine/domain/entities"
	contractsv1 "stemstation/contracts/gen/events/v1"
)

type BattleRepository interface {
	SaveBattle(ctx context.Context, battle entities.Battle) error
	GetBattle(ctx context.Context, battleID string) (entities.Battle, error)
	ListBattlesDueForClose(ctx context.Context, now time.Time, limit int) ([]entities.Battle, error)
	SaveResults(ctx context.Context, results entities.BattleResults) error
	GetResults(ctx context.Context, battleID string) (entities.BattleResults, bool, error)
}

type VoteRepository interface {
	SaveVote(ctx context.Context, vote entities.Vote) error
	GetVote(ctx context.Context, voteID string) (entities.Vote, error)
	// ListVotesByBattle returns the full audit log in arrival order,
	// superseded and flagged votes included.
	ListVotesByBattle(ctx context.Context, battleID string) ([]entities.Vote, error)
}

type RateLimitRepository interface {
	GetRateLimit(ctx context.Context, userID string, battleID string) (entities.VoteRateLimit, bool, error)
	SaveRateLimit(ctx context.Context, record entities.VoteRateLimit) error
}

// ReputationSource resolves a voter's weight multiplier when the battle
// weighs votes by reputation. A missing user falls back to weight 1.
type ReputationSource interface {
	GetReputationWeight(ctx context.Context, userID string) (float64, bool, error)
}

type IdempotencyRecord struct {
	Key         string
	RequestHash string
	VoteID      string
	ExpiresAt   time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	Put(ctx context.Context, record IdempotencyRecord) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
