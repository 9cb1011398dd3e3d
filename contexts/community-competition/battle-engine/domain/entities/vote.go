package entities

import "time"

type FraudFlagType string

const (
	FraudFlagDuplicateIP       FraudFlagType = "duplicate_ip"
	FraudFlagRapidVoting       FraudFlagType = "rapid_voting"
	FraudFlagSuspiciousPattern FraudFlagType = "suspicious_pattern"
	FraudFlagBotBehavior       FraudFlagType = "bot_behavior"
	FraudFlagVPNDetected       FraudFlagType = "vpn_detected"
	FraudFlagNewAccount        FraudFlagType = "new_account"
)

type FraudSeverity string

const (
	FraudSeverityLow      FraudSeverity = "low"
	FraudSeverityMedium   FraudSeverity = "medium"
	FraudSeverityHigh     FraudSeverity = "high"
	FraudSeverityCritical FraudSeverity = "critical"
)

// FraudFlag is immutable once attached to a vote.
type FraudFlag struct {
	Type       FraudFlagType
	Severity   FraudSeverity
	Confidence float64
	DetectedAt time.Time
}

// Vote is an append-only log entry. Superseded votes stay in the log for
// audit and fraud analysis but never count toward tallies.
type Vote struct {
	VoteID     string
	BattleID   string
	TrackID    string
	UserID     string
	Weight     float64
	Timestamp  time.Time
	SessionID  string
	IPAddress  string
	FraudScore float64
	FraudFlags []FraudFlag
	IsVerified bool
	Superseded bool
}

// Counted reports whether the vote contributes to tallies.
func (v Vote) Counted() bool {
	return !v.Superseded && v.IsVerified
}

// VoteRateLimit is one record per (user, battle), created lazily on the
// first vote. RecentVoteTimes backs the 60s sliding window and
// DailyWindowStartsAt the rolling 24h daily cap.
type VoteRateLimit struct {
	UserID               string
	BattleID             string
	VotesCast            int
	LastVoteAt           time.Time
	CooldownUntil        time.Time
	DailyLimit           int
	DailyUsed            int
	DailyWindowStartsAt  time.Time
	RecentVoteTimes      []time.Time
	ReputationMultiplier float64
}
