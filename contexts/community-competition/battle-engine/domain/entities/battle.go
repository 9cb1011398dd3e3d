package entities

import (
	"strings"
	"time"
)

type BattleType string

const (
	BattleTypeHeadToHead     BattleType = "head_to_head"
	BattleTypeTournament     BattleType = "tournament"
	BattleTypeBracket        BattleType = "bracket"
	BattleTypeCommunityVote  BattleType = "community_vote"
	BattleTypeTimedChallenge BattleType = "timed_challenge"
)

type BattleStatus string

const (
	BattleStatusDraft     BattleStatus = "draft"
	BattleStatusVoting    BattleStatus = "voting"
	BattleStatusCompleted BattleStatus = "completed"
	BattleStatusCancelled BattleStatus = "cancelled"
)

// VotingConfig is frozen once voting starts; CooldownBetweenVotes is seconds
// to match the stored representation.
type VotingConfig struct {
	VotesPerUser           int
	AllowVoteChanges       bool
	VotingDuration         time.Duration
	FraudDetectionEnabled  bool
	RateLimitPerMinute     int
	CooldownBetweenVotes   int
	DailyVoteLimit         int
	WeightByUserReputation bool
	AnonymousVoting        bool
}

func DefaultVotingConfig() VotingConfig {
	return VotingConfig{
		VotesPerUser:           1,
		AllowVoteChanges:       true,
		VotingDuration:         22 * time.Hour,
		FraudDetectionEnabled:  true,
		RateLimitPerMinute:     5,
		CooldownBetweenVotes:   30,
		DailyVoteLimit:         50,
		WeightByUserReputation: false,
		AnonymousVoting:        false,
	}
}

func (c VotingConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownBetweenVotes) * time.Second
}

// BattleTrack tally fields (WeightedVotes, VotePercentage, Position) are
// recomputed on every tally pass and never mutated elsewhere.
type BattleTrack struct {
	TrackID        string
	Title          string
	Genre          string
	SubmittedBy    string
	SubmittedAt    time.Time
	WeightedVotes  float64
	VotePercentage float64
	Position       int
}

type Battle struct {
	BattleID        string
	Title           string
	Type            BattleType
	Status          BattleStatus
	Tracks          []BattleTrack
	MinParticipants int
	MaxParticipants int
	StartsAt        time.Time
	VotingStartsAt  time.Time
	VotingEndsAt    time.Time
	EndsAt          time.Time
	Voting          VotingConfig
	CreatedBy       string
	TotalVotes      float64
	WinnerTrackID   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (b Battle) HasTrack(trackID string) bool {
	return b.TrackIndex(trackID) >= 0
}

func (b Battle) TrackIndex(trackID string) int {
	trackID = strings.TrimSpace(trackID)
	for i, track := range b.Tracks {
		if track.TrackID == trackID {
			return i
		}
	}
	return -1
}

// VotingWindow reports the effective voting interval; EndsAt falls back to
// VotingEndsAt when a battle closed early.
func (b Battle) VotingWindow() (time.Time, time.Time) {
	end := b.VotingEndsAt
	if !b.EndsAt.IsZero() && b.EndsAt.Before(end) {
		end = b.EndsAt
	}
	return b.VotingStartsAt, end
}
