package queries

import (
	"context"
	"strings"

	"stemstation/contexts/community-competition/battle-engine/domain/entities"
	"stemstation/contexts/community-competition/battle-engine/domain/recap"
	"stemstation/contexts/community-competition/battle-engine/domain/tally"
	"stemstation/contexts/community-competition/battle-engine/ports"
)

// StandingsUseCase serves reads from the latest committed tally, without the
// battle lock. Callers accept bounded staleness while votes are in flight.
type StandingsUseCase struct {
	Battles ports.BattleRepository
	Votes   ports.VoteRepository
}

func (uc StandingsUseCase) Battle(ctx context.Context, battleID string) (entities.Battle, error) {
	return uc.Battles.GetBattle(ctx, strings.TrimSpace(battleID))
}

// Standings returns the current rankings as of the last recompute.
func (uc StandingsUseCase) Standings(ctx context.Context, battleID string) ([]entities.TrackRanking, error) {
	battle, err := uc.Battles.GetBattle(ctx, strings.TrimSpace(battleID))
	if err != nil {
		return nil, err
	}
	return tally.Rankings(battle), nil
}

// Results returns the persisted final results of a completed battle.
func (uc StandingsUseCase) Results(ctx context.Context, battleID string) (entities.BattleResults, bool, error) {
	return uc.Battles.GetResults(ctx, strings.TrimSpace(battleID))
}

// Analytics derives a live fraud and participation snapshot from the audit
// log, for battles still in flight.
func (uc StandingsUseCase) Analytics(ctx context.Context, battleID string) (entities.BattleStatistics, entities.FraudReport, error) {
	battleID = strings.TrimSpace(battleID)
	battle, err := uc.Battles.GetBattle(ctx, battleID)
	if err != nil {
		return entities.BattleStatistics{}, entities.FraudReport{}, err
	}
	votes, err := uc.Votes.ListVotesByBattle(ctx, battleID)
	if err != nil {
		return entities.BattleStatistics{}, entities.FraudReport{}, err
	}
	return recap.Statistics(battle, votes), recap.Report(votes), nil
}
