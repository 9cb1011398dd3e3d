// Package tally recomputes per-track and battle-level aggregates from the
// vote log. It is deterministic: equal weighted totals rank by earliest
// track submission.
package tally

import (
	"sort"

	"stemstation/contexts/community-competition/battle-engine/domain/entities"
)

// Recompute rewrites every track's WeightedVotes, VotePercentage and
// Position from the counted votes (active and verified), reorders
// battle.Tracks by rank, and sets battle.TotalVotes to the weighted total.
func Recompute(battle *entities.Battle, votes []entities.Vote) {
	weights := make(map[string]float64, len(battle.Tracks))
	for _, vote := range votes {
		if !vote.Counted() {
			continue
		}
		weights[vote.TrackID] += vote.Weight
	}

	total := 0.0
	for i := range battle.Tracks {
		battle.Tracks[i].WeightedVotes = weights[battle.Tracks[i].TrackID]
		total += battle.Tracks[i].WeightedVotes
	}

	for i := range battle.Tracks {
		if total > 0 {
			battle.Tracks[i].VotePercentage = 100 * battle.Tracks[i].WeightedVotes / total
		} else {
			battle.Tracks[i].VotePercentage = 0
		}
	}

	sort.SliceStable(battle.Tracks, func(i, j int) bool {
		if battle.Tracks[i].WeightedVotes == battle.Tracks[j].WeightedVotes {
			return battle.Tracks[i].SubmittedAt.Before(battle.Tracks[j].SubmittedAt)
		}
		return battle.Tracks[i].WeightedVotes > battle.Tracks[j].WeightedVotes
	})
	for i := range battle.Tracks {
		battle.Tracks[i].Position = i + 1
	}

	battle.TotalVotes = total
}

// Rankings converts the battle's current tally into the immutable result
// ranking rows.
func Rankings(battle entities.Battle) []entities.TrackRanking {
	items := make([]entities.TrackRanking, 0, len(battle.Tracks))
	for _, track := range battle.Tracks {
		items = append(items, entities.TrackRanking{
			Position:       track.Position,
			TrackID:        track.TrackID,
			Title:          track.Title,
			WeightedVotes:  track.WeightedVotes,
			VotePercentage: track.VotePercentage,
		})
	}
	return items
}
