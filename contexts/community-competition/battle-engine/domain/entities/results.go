package entities

import "time"

type TrackRanking struct {
	Position       int
	TrackID        string
	Title          string
	WeightedVotes  float64
	VotePercentage float64
}

// TrackBreakdown splits a single track's vote log by disposition.
type TrackBreakdown struct {
	TrackID         string
	CountedVotes    int
	FlaggedVotes    int
	SupersededVotes int
	WeightedVotes   float64
}

type FraudReport struct {
	TotalVotes    int
	VerifiedVotes int
	FlaggedVotes  int
	FlagCounts    map[FraudFlagType]int
}

type BattleStatistics struct {
	TotalVotes          int
	VerifiedVotes       int
	FlaggedVotes        int
	UniqueVoters        int
	Duration            time.Duration
	AverageVotesPerHour float64
	Summary             string
}

type HighlightType string

const (
	HighlightComeback    HighlightType = "comeback"
	HighlightUpset       HighlightType = "upset"
	HighlightCloseRace   HighlightType = "close_race"
	HighlightDominant    HighlightType = "dominant_performance"
	HighlightVotingSurge HighlightType = "voting_surge"
)

type Highlight struct {
	Type        HighlightType
	Description string
	TrackID     string
}

type KeyMoment struct {
	Label      string
	OccurredAt time.Time
	Impact     int
	TrackIDs   []string
}

type VictoryType string

const (
	VictoryLandslide   VictoryType = "landslide"
	VictoryComfortable VictoryType = "comfortable"
	VictoryNarrow      VictoryType = "narrow"
	VictoryUpset       VictoryType = "upset"
)

type WinnerSpotlight struct {
	TrackID        string
	Title          string
	Margin         float64
	VictoryType    VictoryType
	WinningFactors []string
}

type Recap struct {
	Highlights []Highlight
	KeyMoments []KeyMoment
	Spotlight  WinnerSpotlight
	Statistics BattleStatistics
}

// BattleResults is computed once at battle end and immutable thereafter.
type BattleResults struct {
	BattleID      string
	FinalRankings []TrackRanking
	VoteBreakdown map[string]TrackBreakdown
	Statistics    BattleStatistics
	FraudReport   FraudReport
	Recap         Recap
	ComputedAt    time.Time
}
