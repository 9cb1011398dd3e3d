package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"stemstation/contexts/community-competition/battle-engine/domain/entities"
	domainerrors "stemstation/contexts/community-competition/battle-engine/domain/errors"
	"stemstation/contexts/community-competition/battle-engine/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// Store backs every engine port for tests and development wiring.
type Store struct {
	mu sync.RWMutex

	battles     map[string]entities.Battle
	votes       map[string]entities.Vote
	voteSeqs    map[string]uint64
	voteSeq     uint64
	results     map[string]entities.BattleResults
	rateLimits  map[string]entities.VoteRateLimit
	idempotency map[string]ports.IdempotencyRecord
	outbox      map[string]outboxRecord
	reputation  map[string]float64
}

func NewStore(seed []entities.Battle) *Store {
	battles := make(map[string]entities.Battle, len(seed))
	for _, battle := range seed {
		battles[battle.BattleID] = battle
	}
	return &Store{
		battles:     battles,
		votes:       make(map[string]entities.Vote),
		voteSeqs:    make(map[string]uint64),
		results:     make(map[string]entities.BattleResults),
		rateLimits:  make(map[string]entities.VoteRateLimit),
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make(map[string]outboxRecord),
		reputation:  make(map[string]float64),
	}
}

func (s *Store) SetReputationWeight(userID string, weight float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reputation[strings.TrimSpace(userID)] = weight
}

func (s *Store) SaveBattle(_ context.Context, battle entities.Battle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.battles[strings.TrimSpace(battle.BattleID)] = battle
	return nil
}

func (s *Store) GetBattle(_ context.Context, battleID string) (entities.Battle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	battle, ok := s.battles[strings.TrimSpace(battleID)]
	if !ok {
		return entities.Battle{}, domainerrors.ErrBattleNotFound
	}
	return battle, nil
}

func (s *Store) ListBattlesDueForClose(_ context.Context, now time.Time, limit int) ([]entities.Battle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	items := make([]entities.Battle, 0)
	for _, battle := range s.battles {
		if battle.Status != entities.BattleStatusVoting {
			continue
		}
		if battle.VotingEndsAt.After(now) {
			continue
		}
		items = append(items, battle)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].VotingEndsAt.Before(items[j].VotingEndsAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) SaveResults(_ context.Context, results entities.BattleResults) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[strings.TrimSpace(results.BattleID)] = results
	return nil
}

func (s *Store) GetResults(_ context.Context, battleID string) (entities.BattleResults, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results, ok := s.results[strings.TrimSpace(battleID)]
	if !ok {
		return entities.BattleResults{}, false, nil
	}
	return results, true, nil
}

func (s *Store) SaveVote(_ context.Context, vote entities.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	voteID := strings.TrimSpace(vote.VoteID)
	// The arrival sequence breaks cast-time ties so listings stay in
	// insertion order; updates keep the original slot.
	if _, exists := s.voteSeqs[voteID]; !exists {
		s.voteSeq++
		s.voteSeqs[voteID] = s.voteSeq
	}
	s.votes[voteID] = vote
	return nil
}

func (s *Store) GetVote(_ context.Context, voteID string) (entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vote, ok := s.votes[strings.TrimSpace(voteID)]
	if !ok {
		return entities.Vote{}, domainerrors.ErrVoteNotFound
	}
	return vote, nil
}

func (s *Store) ListVotesByBattle(_ context.Context, battleID string) ([]entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Vote, 0)
	for _, vote := range s.votes {
		if vote.BattleID == strings.TrimSpace(battleID) {
			items = append(items, vote)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Timestamp.Equal(items[j].Timestamp) {
			return s.voteSeqs[items[i].VoteID] < s.voteSeqs[items[j].VoteID]
		}
		return items[i].Timestamp.Before(items[j].Timestamp)
	})
	return items, nil
}

func (s *Store) GetRateLimit(_ context.Context, userID string, battleID string) (entities.VoteRateLimit, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.rateLimits[rateLimitKey(userID, battleID)]
	if !ok {
		return entities.VoteRateLimit{}, false, nil
	}
	return record, true, nil
}

func (s *Store) SaveRateLimit(_ context.Context, record entities.VoteRateLimit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimits[rateLimitKey(record.UserID, record.BattleID)] = record
	return nil
}

func (s *Store) GetReputationWeight(_ context.Context, userID string) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	weight, ok := s.reputation[strings.TrimSpace(userID)]
	if !ok {
		return 0, false, nil
	}
	return weight, true, nil
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = strings.TrimSpace(key)
	record, exists := s.idempotency[key]
	if !exists {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.After(now.UTC()) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) Put(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(record.Key)
	existing, exists := s.idempotency[key]
	if exists {
		if existing.RequestHash != record.RequestHash || existing.VoteID != record.VoteID {
			return domainerrors.ErrIdempotencyConflict
		}
		return nil
	}
	s.idempotency[key] = ports.IdempotencyRecord{
		Key:         key,
		RequestHash: strings.TrimSpace(record.RequestHash),
		VoteID:      strings.TrimSpace(record.VoteID),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func rateLimitKey(userID string, battleID string) string {
	return strings.TrimSpace(userID) + "/" + strings.TrimSpace(battleID)
}

var (
	_ ports.BattleRepository    = (*Store)(nil)
	_ ports.VoteRepository      = (*Store)(nil)
	_ ports.RateLimitRepository = (*Store)(nil)
	_ ports.ReputationSource    = (*Store)(nil)
	_ ports.IdempotencyStore    = (*Store)(nil)
	_ ports.OutboxWriter        = (*Store)(nil)
	_ ports.OutboxRepository    = (*Store)(nil)
	_ ports.Clock               = (*Store)(nil)
	_ ports.IDGenerator         = (*Store)(nil)
)
