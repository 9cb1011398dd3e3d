// Package recap derives the narrative summary of a completed battle from
// its final tally and full vote log. Everything here is deterministic: the
// highlight order is fixed and doubles as the tie-break policy, and the
// comeback/upset detectors are replay heuristics over the counted votes.
package recap

import (
	"fmt"
	"sort"
	"time"

	"stemstation/contexts/community-competition/battle-engine/domain/entities"
)

const (
	maxHighlights     = 3
	maxWinningFactors = 3
	closeRaceMargin   = 5.0
	dominantShare     = 60.0
	earlyWindow       = 2 * time.Hour
)

// Generate builds the recap for a battle whose final tally has already been
// applied (tracks sorted, positions assigned).
func Generate(battle entities.Battle, votes []entities.Vote) entities.Recap {
	return entities.Recap{
		Highlights: highlights(battle, votes),
		KeyMoments: keyMoments(battle, votes),
		Spotlight:  spotlight(battle, votes),
		Statistics: Statistics(battle, votes),
	}
}

// Report aggregates the fraud disposition of the full vote log.
func Report(votes []entities.Vote) entities.FraudReport {
	report := entities.FraudReport{
		FlagCounts: make(map[entities.FraudFlagType]int),
	}
	for _, vote := range votes {
		report.TotalVotes++
		if vote.IsVerified {
			report.VerifiedVotes++
		}
		if len(vote.FraudFlags) > 0 {
			report.FlaggedVotes++
		}
		for _, flag := range vote.FraudFlags {
			report.FlagCounts[flag.Type]++
		}
	}
	return report
}

// Breakdown splits the vote log per track by disposition.
func Breakdown(votes []entities.Vote) map[string]entities.TrackBreakdown {
	byTrack := make(map[string]entities.TrackBreakdown)
	for _, vote := range votes {
		row := byTrack[vote.TrackID]
		row.TrackID = vote.TrackID
		switch {
		case vote.Superseded:
			row.SupersededVotes++
		case vote.IsVerified:
			row.CountedVotes++
			row.WeightedVotes += vote.Weight
		default:
			row.FlaggedVotes++
		}
		byTrack[vote.TrackID] = row
	}
	return byTrack
}

// Statistics summarizes the battle in numbers plus one rendered sentence.
func Statistics(battle entities.Battle, votes []entities.Vote) entities.BattleStatistics {
	report := Report(votes)
	voters := make(map[string]struct{})
	for _, vote := range votes {
		voters[vote.UserID] = struct{}{}
	}

	start, end := battle.VotingWindow()
	duration := end.Sub(start)
	perHour := 0.0
	if hours := duration.Hours(); hours > 0 {
		perHour = float64(report.TotalVotes) / hours
	}

	stats := entities.BattleStatistics{
		TotalVotes:          report.TotalVotes,
		VerifiedVotes:       report.VerifiedVotes,
		FlaggedVotes:        report.FlaggedVotes,
		UniqueVoters:        len(voters),
		Duration:            duration,
		AverageVotesPerHour: perHour,
	}
	stats.Summary = fmt.Sprintf(
		"%d votes came in from %d voters over %s: %d verified, %d flagged, averaging %.1f votes per hour.",
		stats.TotalVotes, stats.UniqueVoters, duration.Round(time.Minute),
		stats.VerifiedVotes, stats.FlaggedVotes, stats.AverageVotesPerHour,
	)
	return stats
}

// highlights evaluates the fixed rule order and returns the first three
// matches. The order is the tie-break policy, not a significance ranking.
func highlights(battle entities.Battle, votes []entities.Vote) []entities.Highlight {
	var items []entities.Highlight
	winner := winnerTrack(battle)

	if winner != nil && isComeback(battle, votes, winner.TrackID) {
		items = append(items, entities.Highlight{
			Type:        entities.HighlightComeback,
			TrackID:     winner.TrackID,
			Description: fmt.Sprintf("%s took the lead after trailing mid-battle.", winner.Title),
		})
	}
	if winner != nil && isUpset(battle, votes, winner.TrackID) {
		items = append(items, entities.Highlight{
			Type:        entities.HighlightUpset,
			TrackID:     winner.TrackID,
			Description: fmt.Sprintf("%s won despite a slow start to the voting window.", winner.Title),
		})
	}
	if margin, ok := leadMargin(battle); ok && margin < closeRaceMargin {
		items = append(items, entities.Highlight{
			Type:        entities.HighlightCloseRace,
			TrackID:     battle.Tracks[0].TrackID,
			Description: fmt.Sprintf("The lead came down to %.1f percentage points.", margin),
		})
	}
	if winner != nil && winner.VotePercentage > dominantShare {
		items = append(items, entities.Highlight{
			Type:        entities.HighlightDominant,
			TrackID:     winner.TrackID,
			Description: fmt.Sprintf("%s carried %.1f%% of the weighted vote.", winner.Title, winner.VotePercentage),
		})
	}
	if peak, mean, ok := hourlySurge(battle, votes); ok {
		items = append(items, entities.Highlight{
			Type:        entities.HighlightVotingSurge,
			Description: fmt.Sprintf("Voting peaked at %d votes in one hour, against a mean of %.1f.", peak, mean),
		})
	}

	if len(items) > maxHighlights {
		items = items[:maxHighlights]
	}
	return items
}

// keyMoments is the fixed 4-point timeline over the voting window.
func keyMoments(battle entities.Battle, votes []entities.Vote) []entities.KeyMoment {
	start, end := battle.VotingWindow()
	midpoint := start.Add(end.Sub(start) / 2)

	allTracks := make([]string, 0, len(battle.Tracks))
	for _, track := range battle.Tracks {
		allTracks = append(allTracks, track.TrackID)
	}

	midLeader := leaderAt(votes, midpoint)
	midTracks := allTracks
	if midLeader != "" {
		midTracks = []string{midLeader}
	}

	topTwo := allTracks
	if len(topTwo) > 2 {
		topTwo = topTwo[:2]
	}

	endTracks := allTracks
	if battle.WinnerTrackID != "" {
		endTracks = []string{battle.WinnerTrackID}
	}

	return []entities.KeyMoment{
		{Label: "voting opened", OccurredAt: start, Impact: 60, TrackIDs: allTracks},
		{Label: "midpoint of the voting window", OccurredAt: midpoint, Impact: 50, TrackIDs: midTracks},
		{Label: "final hour of voting", OccurredAt: end.Add(-time.Hour), Impact: 80, TrackIDs: topTwo},
		{Label: "voting closed", OccurredAt: end, Impact: 100, TrackIDs: endTracks},
	}
}

func spotlight(battle entities.Battle, votes []entities.Vote) entities.WinnerSpotlight {
	winner := winnerTrack(battle)
	if winner == nil {
		return entities.WinnerSpotlight{}
	}

	margin := winner.VotePercentage
	if len(battle.Tracks) > 1 {
		margin = winner.VotePercentage - battle.Tracks[1].VotePercentage
	}

	victory := entities.VictoryUpset
	switch {
	case margin > 30:
		victory = entities.VictoryLandslide
	case margin > 15:
		victory = entities.VictoryComfortable
	case margin > 5:
		victory = entities.VictoryNarrow
	}

	var factors []string
	if winner.VotePercentage > 50 {
		factors = append(factors, "strong community support")
	}
	if hasEarlyMomentum(battle, votes, winner.TrackID) {
		factors = append(factors, "early momentum")
	}
	if winner.Genre != "" {
		factors = append(factors, fmt.Sprintf("%s genre appeal", winner.Genre))
	}
	factors = append(factors, "consistent vote accumulation")
	if len(factors) > maxWinningFactors {
		factors = factors[:maxWinningFactors]
	}

	return entities.WinnerSpotlight{
		TrackID:        winner.TrackID,
		Title:          winner.Title,
		Margin:         margin,
		VictoryType:    victory,
		WinningFactors: factors,
	}
}

func winnerTrack(battle entities.Battle) *entities.BattleTrack {
	if len(battle.Tracks) == 0 || battle.TotalVotes <= 0 {
		return nil
	}
	return &battle.Tracks[0]
}

func leadMargin(battle entities.Battle) (float64, bool) {
	if len(battle.Tracks) < 2 || battle.TotalVotes <= 0 {
		return 0, false
	}
	return battle.Tracks[0].VotePercentage - battle.Tracks[1].VotePercentage, true
}

// isComeback replays the counted votes in arrival order and reports whether
// the eventual winner was still trailing once half of them had landed.
// Heuristic standing in for full lead-change tracking.
func isComeback(battle entities.Battle, votes []entities.Vote, winnerID string) bool {
	counted := countedSorted(votes)
	if len(counted) < 2 || len(battle.Tracks) < 2 {
		return false
	}
	leader := leaderAfter(counted[:len(counted)/2])
	return leader != "" && leader != winnerID
}

// isUpset reports whether the winner was outside the top spot at the end of
// the first quarter of the voting window.
func isUpset(battle entities.Battle, votes []entities.Vote, winnerID string) bool {
	start, end := battle.VotingWindow()
	quarter := start.Add(end.Sub(start) / 4)
	leader := leaderAt(votes, quarter)
	return leader != "" && leader != winnerID
}

func hourlySurge(battle entities.Battle, votes []entities.Vote) (int, float64, bool) {
	start, end := battle.VotingWindow()
	if !end.After(start) {
		return 0, 0, false
	}
	buckets := int(end.Sub(start)/time.Hour) + 1
	if buckets < 2 {
		return 0, 0, false
	}

	counts := make([]int, buckets)
	total := 0
	for _, vote := range votes {
		if !vote.Counted() || vote.Timestamp.Before(start) || vote.Timestamp.After(end) {
			continue
		}
		idx := int(vote.Timestamp.Sub(start) / time.Hour)
		if idx >= buckets {
			idx = buckets - 1
		}
		counts[idx]++
		total++
	}
	if total == 0 {
		return 0, 0, false
	}

	peak := 0
	for _, count := range counts {
		if count > peak {
			peak = count
		}
	}
	mean := float64(total) / float64(buckets)
	if float64(peak) > 2*mean {
		return peak, mean, true
	}
	return 0, 0, false
}

func hasEarlyMomentum(battle entities.Battle, votes []entities.Vote, winnerID string) bool {
	start, _ := battle.VotingWindow()
	cutoff := start.Add(earlyWindow)

	early, winnerEarly := 0, 0
	for _, vote := range votes {
		if !vote.Counted() || vote.Timestamp.After(cutoff) {
			continue
		}
		early++
		if vote.TrackID == winnerID {
			winnerEarly++
		}
	}
	return early > 0 && float64(winnerEarly)/float64(early) > 0.4
}

func leaderAt(votes []entities.Vote, cutoff time.Time) string {
	counted := countedSorted(votes)
	upTo := counted[:0]
	for _, vote := range counted {
		if !vote.Timestamp.After(cutoff) {
			upTo = append(upTo, vote)
		}
	}
	return leaderAfter(upTo)
}

func leaderAfter(votes []entities.Vote) string {
	weights := make(map[string]float64)
	for _, vote := range votes {
		weights[vote.TrackID] += vote.Weight
	}

	leader := ""
	best := 0.0
	for trackID, weight := range weights {
		if weight > best || (weight == best && leader != "" && trackID < leader) {
			leader = trackID
			best = weight
		}
	}
	return leader
}

func countedSorted(votes []entities.Vote) []entities.Vote {
	counted := make([]entities.Vote, 0, len(votes))
	for _, vote := range votes {
		if vote.Counted() {
			counted = append(counted, vote)
		}
	}
	sort.SliceStable(counted, func(i, j int) bool {
		return counted[i].Timestamp.Before(counted[j].Timestamp)
	})
	return counted
}
