package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type VotingConfigDTO struct {
	VotesPerUser           int  `json:"votes_per_user"`
	AllowVoteChanges       bool `json:"allow_vote_changes"`
	VotingDurationSeconds  int  `json:"voting_duration_seconds,omitempty"`
	FraudDetectionEnabled  bool `json:"fraud_detection_enabled"`
	RateLimitPerMinute     int  `json:"rate_limit_per_minute"`
	CooldownSeconds        int  `json:"cooldown_between_votes_seconds"`
	DailyVoteLimit         int  `json:"daily_vote_limit"`
	WeightByUserReputation bool `json:"weight_by_user_reputation"`
	AnonymousVoting        bool `json:"anonymous_voting"`
}

type CreateBattleRequest struct {
	Title           string           `json:"title"`
	BattleType      string           `json:"battle_type"`
	MinParticipants int              `json:"min_participants,omitempty"`
	MaxParticipants int              `json:"max_participants,omitempty"`
	StartsAt        *time.Time       `json:"starts_at,omitempty"`
	VotingStartsAt  *time.Time       `json:"voting_starts_at,omitempty"`
	VotingEndsAt    *time.Time       `json:"voting_ends_at,omitempty"`
	EndsAt          *time.Time       `json:"ends_at,omitempty"`
	Voting          *VotingConfigDTO `json:"voting_config,omitempty"`
}

type AddTrackRequest struct {
	TrackID string `json:"track_id"`
	Title   string `json:"title"`
	Genre   string `json:"genre,omitempty"`
}

type UpdateVotingConfigRequest struct {
	Voting VotingConfigDTO `json:"voting_config"`
}

type CastVoteRequest struct {
	TrackID   string `json:"track_id"`
	SessionID string `json:"session_id,omitempty"`
}

type TrackDTO struct {
	TrackID        string    `json:"track_id"`
	Title          string    `json:"title"`
	Genre          string    `json:"genre,omitempty"`
	SubmittedBy    string    `json:"submitted_by"`
	SubmittedAt    time.Time `json:"submitted_at"`
	WeightedVotes  float64   `json:"weighted_votes"`
	VotePercentage float64   `json:"vote_percentage"`
	Position       int       `json:"position"`
}

type BattleResponse struct {
	BattleID        string          `json:"battle_id"`
	Title           string          `json:"title"`
	BattleType      string          `json:"battle_type"`
	Status          string          `json:"status"`
	Tracks          []TrackDTO      `json:"tracks"`
	MinParticipants int             `json:"min_participants"`
	MaxParticipants int             `json:"max_participants"`
	StartsAt        time.Time       `json:"starts_at"`
	VotingStartsAt  time.Time       `json:"voting_starts_at"`
	VotingEndsAt    time.Time       `json:"voting_ends_at"`
	EndsAt          time.Time       `json:"ends_at"`
	Voting          VotingConfigDTO `json:"voting_config"`
	CreatedBy       string          `json:"created_by"`
	TotalVotes      float64         `json:"total_votes"`
	WinnerTrackID   string          `json:"winner_track_id,omitempty"`
}

type VoteResponse struct {
	VoteID     string   `json:"vote_id"`
	BattleID   string   `json:"battle_id"`
	TrackID    string   `json:"track_id"`
	UserID     string   `json:"user_id"`
	Weight     float64  `json:"weight"`
	SessionID  string   `json:"session_id"`
	FraudScore float64  `json:"fraud_score"`
	FraudFlags []string `json:"fraud_flags,omitempty"`
	IsVerified bool     `json:"is_verified"`
	Replayed   bool     `json:"replayed"`
	Superseded bool     `json:"superseded_prior_vote"`
}

type StandingItem struct {
	Position       int     `json:"position"`
	TrackID        string  `json:"track_id"`
	Title          string  `json:"title"`
	WeightedVotes  float64 `json:"weighted_votes"`
	VotePercentage float64 `json:"vote_percentage"`
}

type StandingsResponse struct {
	BattleID string         `json:"battle_id"`
	Items    []StandingItem `json:"items"`
}

type RankingItem struct {
	Position       int     `json:"position"`
	TrackID        string  `json:"track_id"`
	Title          string  `json:"title"`
	WeightedVotes  float64 `json:"weighted_votes"`
	VotePercentage float64 `json:"vote_percentage"`
}

type BreakdownItem struct {
	TrackID         string  `json:"track_id"`
	CountedVotes    int     `json:"counted_votes"`
	FlaggedVotes    int     `json:"flagged_votes"`
	SupersededVotes int     `json:"superseded_votes"`
	WeightedVotes   float64 `json:"weighted_votes"`
}

type HighlightDTO struct {
	Type        string `json:"type"`
	TrackID     string `json:"track_id,omitempty"`
	Description string `json:"description"`
}

type KeyMomentDTO struct {
	Label      string    `json:"label"`
	OccurredAt time.Time `json:"occurred_at"`
	Impact     int       `json:"impact"`
	TrackIDs   []string  `json:"track_ids"`
}

type SpotlightDTO struct {
	TrackID        string   `json:"track_id"`
	Title          string   `json:"title"`
	Margin         float64  `json:"margin"`
	VictoryType    string   `json:"victory_type"`
	WinningFactors []string `json:"winning_factors"`
}

type StatisticsDTO struct {
	TotalVotes          int     `json:"total_votes"`
	VerifiedVotes       int     `json:"verified_votes"`
	FlaggedVotes        int     `json:"flagged_votes"`
	UniqueVoters        int     `json:"unique_voters"`
	DurationSeconds     int     `json:"duration_seconds"`
	AverageVotesPerHour float64 `json:"average_votes_per_hour"`
	Summary             string  `json:"summary"`
}

type RecapDTO struct {
	Highlights []HighlightDTO `json:"highlights"`
	KeyMoments []KeyMomentDTO `json:"key_moments"`
	Spotlight  SpotlightDTO   `json:"winner_spotlight"`
	Statistics StatisticsDTO  `json:"statistics"`
}

type ResultsResponse struct {
	BattleID      string                   `json:"battle_id"`
	FinalRankings []RankingItem            `json:"final_rankings"`
	VoteBreakdown map[string]BreakdownItem `json:"vote_breakdown"`
	FraudReport   struct {
		TotalVotes    int            `json:"total_votes"`
		VerifiedVotes int            `json:"verified_votes"`
		FlaggedVotes  int            `json:"flagged_votes"`
		FlagCounts    map[string]int `json:"flag_counts"`
	} `json:"fraud_report"`
	Recap      RecapDTO  `json:"recap"`
	ComputedAt time.Time `json:"computed_at"`
}

type AnalyticsResponse struct {
	BattleID            string         `json:"battle_id"`
	TotalVotes          int            `json:"total_votes"`
	VerifiedVotes       int            `json:"verified_votes"`
	FlaggedVotes        int            `json:"flagged_votes"`
	UniqueVoters        int            `json:"unique_voters"`
	AverageVotesPerHour float64        `json:"average_votes_per_hour"`
	FlagCounts          map[string]int `json:"flag_counts"`
}
