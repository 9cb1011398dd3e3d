package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"stemstation/contexts/community-competition/battle-engine/application/commands"
	"stemstation/contexts/community-competition/battle-engine/application/queries"
	"stemstation/contexts/community-competition/battle-engine/domain/entities"
	httptransport "stemstation/contexts/community-competition/battle-engine/transport/http"
)

// Handler adapts the engine's use cases to the transport DTOs. It owns no
// business rules; the platform server owns routing and status codes.
type Handler struct {
	Battles   commands.BattleUseCase
	Votes     commands.VoteUseCase
	Standings queries.StandingsUseCase
	Logger    *slog.Logger
}

func (h Handler) CreateBattleHandler(
	ctx context.Context,
	userID string,
	req httptransport.CreateBattleRequest,
) (httptransport.BattleResponse, error) {
	cmd := commands.CreateBattleCommand{
		Title:           req.Title,
		Type:            entities.BattleType(req.BattleType),
		CreatedBy:       userID,
		MinParticipants: req.MinParticipants,
		MaxParticipants: req.MaxParticipants,
	}
	if req.StartsAt != nil {
		cmd.StartsAt = *req.StartsAt
	}
	if req.VotingStartsAt != nil {
		cmd.VotingStartsAt = *req.VotingStartsAt
	}
	if req.VotingEndsAt != nil {
		cmd.VotingEndsAt = *req.VotingEndsAt
	}
	if req.EndsAt != nil {
		cmd.EndsAt = *req.EndsAt
	}
	if req.Voting != nil {
		voting := votingConfigFromDTO(*req.Voting)
		cmd.Voting = &voting
	}

	battle, err := h.Battles.CreateBattle(ctx, cmd)
	if err != nil {
		return httptransport.BattleResponse{}, err
	}
	return mapBattle(battle), nil
}

func (h Handler) AddTrackHandler(
	ctx context.Context,
	battleID string,
	userID string,
	req httptransport.AddTrackRequest,
) (httptransport.BattleResponse, error) {
	battle, err := h.Battles.AddTrack(ctx, commands.AddTrackCommand{
		BattleID:    battleID,
		TrackID:     req.TrackID,
		Title:       req.Title,
		Genre:       req.Genre,
		SubmittedBy: userID,
	})
	if err != nil {
		return httptransport.BattleResponse{}, err
	}
	return mapBattle(battle), nil
}

func (h Handler) StartVotingHandler(ctx context.Context, battleID string) (httptransport.BattleResponse, error) {
	battle, err := h.Battles.StartVoting(ctx, battleID)
	if err != nil {
		return httptransport.BattleResponse{}, err
	}
	return mapBattle(battle), nil
}

func (h Handler) UpdateVotingConfigHandler(
	ctx context.Context,
	battleID string,
	req httptransport.UpdateVotingConfigRequest,
) (httptransport.BattleResponse, error) {
	battle, err := h.Battles.UpdateVotingConfig(ctx, battleID, votingConfigFromDTO(req.Voting))
	if err != nil {
		return httptransport.BattleResponse{}, err
	}
	return mapBattle(battle), nil
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	battleID string,
	userID string,
	ipAddress string,
	req httptransport.CastVoteRequest,
) (httptransport.VoteResponse, error) {
	result, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		BattleID:  battleID,
		TrackID:   req.TrackID,
		UserID:    userID,
		SessionID: req.SessionID,
		IPAddress: ipAddress,
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	flags := make([]string, 0, len(result.Vote.FraudFlags))
	for _, flag := range result.Vote.FraudFlags {
		flags = append(flags, string(flag.Type))
	}
	return httptransport.VoteResponse{
		VoteID:     result.Vote.VoteID,
		BattleID:   result.Vote.BattleID,
		TrackID:    result.Vote.TrackID,
		UserID:     result.Vote.UserID,
		Weight:     result.Vote.Weight,
		SessionID:  result.Vote.SessionID,
		FraudScore: result.Vote.FraudScore,
		FraudFlags: flags,
		IsVerified: result.Vote.IsVerified,
		Replayed:   result.Replayed,
		Superseded: result.Superseded,
	}, nil
}

func (h Handler) EndBattleHandler(ctx context.Context, battleID string) (httptransport.ResultsResponse, error) {
	results, err := h.Battles.EndBattle(ctx, battleID)
	if err != nil {
		return httptransport.ResultsResponse{}, err
	}
	return mapResults(results), nil
}

func (h Handler) CancelBattleHandler(ctx context.Context, battleID string) (httptransport.BattleResponse, error) {
	battle, err := h.Battles.CancelBattle(ctx, battleID)
	if err != nil {
		return httptransport.BattleResponse{}, err
	}
	return mapBattle(battle), nil
}

func (h Handler) GetBattleHandler(ctx context.Context, battleID string) (httptransport.BattleResponse, error) {
	battle, err := h.Standings.Battle(ctx, battleID)
	if err != nil {
		return httptransport.BattleResponse{}, err
	}
	return mapBattle(battle), nil
}

func (h Handler) StandingsHandler(ctx context.Context, battleID string) (httptransport.StandingsResponse, error) {
	rankings, err := h.Standings.Standings(ctx, battleID)
	if err != nil {
		return httptransport.StandingsResponse{}, err
	}
	items := make([]httptransport.StandingItem, 0, len(rankings))
	for _, ranking := range rankings {
		items = append(items, httptransport.StandingItem{
			Position:       ranking.Position,
			TrackID:        ranking.TrackID,
			Title:          ranking.Title,
			WeightedVotes:  ranking.WeightedVotes,
			VotePercentage: ranking.VotePercentage,
		})
	}
	return httptransport.StandingsResponse{
		BattleID: battleID,
		Items:    items,
	}, nil
}

func (h Handler) ResultsHandler(ctx context.Context, battleID string) (httptransport.ResultsResponse, bool, error) {
	results, found, err := h.Standings.Results(ctx, battleID)
	if err != nil || !found {
		return httptransport.ResultsResponse{}, found, err
	}
	return mapResults(results), true, nil
}

func (h Handler) AnalyticsHandler(ctx context.Context, battleID string) (httptransport.AnalyticsResponse, error) {
	stats, report, err := h.Standings.Analytics(ctx, battleID)
	if err != nil {
		return httptransport.AnalyticsResponse{}, err
	}
	return httptransport.AnalyticsResponse{
		BattleID:            battleID,
		TotalVotes:          stats.TotalVotes,
		VerifiedVotes:       stats.VerifiedVotes,
		FlaggedVotes:        stats.FlaggedVotes,
		UniqueVoters:        stats.UniqueVoters,
		AverageVotesPerHour: stats.AverageVotesPerHour,
		FlagCounts:          mapFlagCounts(report.FlagCounts),
	}, nil
}

func mapBattle(battle entities.Battle) httptransport.BattleResponse {
	tracks := make([]httptransport.TrackDTO, 0, len(battle.Tracks))
	for _, track := range battle.Tracks {
		tracks = append(tracks, httptransport.TrackDTO{
			TrackID:        track.TrackID,
			Title:          track.Title,
			Genre:          track.Genre,
			SubmittedBy:    track.SubmittedBy,
			SubmittedAt:    track.SubmittedAt,
			WeightedVotes:  track.WeightedVotes,
			VotePercentage: track.VotePercentage,
			Position:       track.Position,
		})
	}
	return httptransport.BattleResponse{
		BattleID:        battle.BattleID,
		Title:           battle.Title,
		BattleType:      string(battle.Type),
		Status:          string(battle.Status),
		Tracks:          tracks,
		MinParticipants: battle.MinParticipants,
		MaxParticipants: battle.MaxParticipants,
		StartsAt:        battle.StartsAt,
		VotingStartsAt:  battle.VotingStartsAt,
		VotingEndsAt:    battle.VotingEndsAt,
		EndsAt:          battle.EndsAt,
		Voting:          votingConfigToDTO(battle.Voting),
		CreatedBy:       battle.CreatedBy,
		TotalVotes:      battle.TotalVotes,
		WinnerTrackID:   battle.WinnerTrackID,
	}
}

func mapResults(results entities.BattleResults) httptransport.ResultsResponse {
	rankings := make([]httptransport.RankingItem, 0, len(results.FinalRankings))
	for _, ranking := range results.FinalRankings {
		rankings = append(rankings, httptransport.RankingItem{
			Position:       ranking.Position,
			TrackID:        ranking.TrackID,
			Title:          ranking.Title,
			WeightedVotes:  ranking.WeightedVotes,
			VotePercentage: ranking.VotePercentage,
		})
	}

	breakdown := make(map[string]httptransport.BreakdownItem, len(results.VoteBreakdown))
	for trackID, row := range results.VoteBreakdown {
		breakdown[trackID] = httptransport.BreakdownItem{
			TrackID:         row.TrackID,
			CountedVotes:    row.CountedVotes,
			FlaggedVotes:    row.FlaggedVotes,
			SupersededVotes: row.SupersededVotes,
			WeightedVotes:   row.WeightedVotes,
		}
	}

	highlights := make([]httptransport.HighlightDTO, 0, len(results.Recap.Highlights))
	for _, highlight := range results.Recap.Highlights {
		highlights = append(highlights, httptransport.HighlightDTO{
			Type:        string(highlight.Type),
			TrackID:     highlight.TrackID,
			Description: highlight.Description,
		})
	}
	moments := make([]httptransport.KeyMomentDTO, 0, len(results.Recap.KeyMoments))
	for _, moment := range results.Recap.KeyMoments {
		moments = append(moments, httptransport.KeyMomentDTO{
			Label:      moment.Label,
			OccurredAt: moment.OccurredAt,
			Impact:     moment.Impact,
			TrackIDs:   moment.TrackIDs,
		})
	}

	response := httptransport.ResultsResponse{
		BattleID:      results.BattleID,
		FinalRankings: rankings,
		VoteBreakdown: breakdown,
		Recap: httptransport.RecapDTO{
			Highlights: highlights,
			KeyMoments: moments,
			Spotlight: httptransport.SpotlightDTO{
				TrackID:        results.Recap.Spotlight.TrackID,
				Title:          results.Recap.Spotlight.Title,
				Margin:         results.Recap.Spotlight.Margin,
				VictoryType:    string(results.Recap.Spotlight.VictoryType),
				WinningFactors: results.Recap.Spotlight.WinningFactors,
			},
			Statistics: statisticsToDTO(results.Recap.Statistics),
		},
		ComputedAt: results.ComputedAt,
	}
	response.FraudReport.TotalVotes = results.FraudReport.TotalVotes
	response.FraudReport.VerifiedVotes = results.FraudReport.VerifiedVotes
	response.FraudReport.FlaggedVotes = results.FraudReport.FlaggedVotes
	response.FraudReport.FlagCounts = mapFlagCounts(results.FraudReport.FlagCounts)
	return response
}

func statisticsToDTO(stats entities.BattleStatistics) httptransport.StatisticsDTO {
	return httptransport.StatisticsDTO{
		TotalVotes:          stats.TotalVotes,
		VerifiedVotes:       stats.VerifiedVotes,
		FlaggedVotes:        stats.FlaggedVotes,
		UniqueVoters:        stats.UniqueVoters,
		DurationSeconds:     int(stats.Duration / time.Second),
		AverageVotesPerHour: stats.AverageVotesPerHour,
		Summary:             stats.Summary,
	}
}

func mapFlagCounts(counts map[entities.FraudFlagType]int) map[string]int {
	mapped := make(map[string]int, len(counts))
	for flagType, count := range counts {
		mapped[string(flagType)] = count
	}
	return mapped
}

func votingConfigFromDTO(dto httptransport.VotingConfigDTO) entities.VotingConfig {
	return entities.VotingConfig{
		VotesPerUser:           dto.VotesPerUser,
		AllowVoteChanges:       dto.AllowVoteChanges,
		VotingDuration:         time.Duration(dto.VotingDurationSeconds) * time.Second,
		FraudDetectionEnabled:  dto.FraudDetectionEnabled,
		RateLimitPerMinute:     dto.RateLimitPerMinute,
		CooldownBetweenVotes:   dto.CooldownSeconds,
		DailyVoteLimit:         dto.DailyVoteLimit,
		WeightByUserReputation: dto.WeightByUserReputation,
		AnonymousVoting:        dto.AnonymousVoting,
	}
}

func votingConfigToDTO(config entities.VotingConfig) httptransport.VotingConfigDTO {
	return httptransport.VotingConfigDTO{
		VotesPerUser:           config.VotesPerUser,
		AllowVoteChanges:       config.AllowVoteChanges,
		VotingDurationSeconds:  int(config.VotingDuration / time.Second),
		FraudDetectionEnabled:  config.FraudDetectionEnabled,
		RateLimitPerMinute:     config.RateLimitPerMinute,
		CooldownSeconds:        config.CooldownBetweenVotes,
		DailyVoteLimit:         config.DailyVoteLimit,
		WeightByUserReputation: config.WeightByUserReputation,
		AnonymousVoting:        config.AnonymousVoting,
	}
}
