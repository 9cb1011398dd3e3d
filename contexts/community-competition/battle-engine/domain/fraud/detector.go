// Package fraud is the stateless rule evaluator for candidate votes. Rules
// annotate; they never reject. A flagged vote is stored unverified and
// excluded from tallies, so callers must not treat a high score as an error.
package fraud

import (
	"sort"
	"time"

	"stemstation/contexts/community-competition/battle-engine/domain/entities"
)

// VerificationThreshold is the score at which a vote stops counting toward
// tallies. Evaluated once at ingestion, never re-evaluated.
const VerificationThreshold = 20.0

const (
	rapidVotingWindow    = 60 * time.Second
	rapidVotingMax       = 3
	duplicateIPMax       = 5
	cadenceMinVotes      = 5
	cadenceJitterCeiling = time.Second
)

// SeverityWeight maps flag severity to its score multiplier.
func SeverityWeight(severity entities.FraudSeverity) float64 {
	switch severity {
	case entities.FraudSeverityLow:
		return 1
	case entities.FraudSeverityMedium:
		return 2
	case entities.FraudSeverityHigh:
		return 3
	case entities.FraudSeverityCritical:
		return 5
	default:
		return 1
	}
}

// Score is the additive risk score: Σ confidence × severity weight. It can
// exceed 100 when several rules fire; the raw value is kept for auditing.
func Score(flags []entities.FraudFlag) float64 {
	total := 0.0
	for _, flag := range flags {
		total += flag.Confidence * SeverityWeight(flag.Severity)
	}
	return total
}

// Analyze evaluates the candidate vote against the battle's full audit log
// (superseded votes included — tallying is restricted elsewhere, fraud
// analysis is not). Rule counts include the candidate itself, so the vote
// that crosses a threshold is the one flagged. Flags come back in detection
// order and are never deduplicated across rules.
func Analyze(candidate entities.Vote, log []entities.Vote, now time.Time) []entities.FraudFlag {
	var flags []entities.FraudFlag

	if recentByUser(candidate.UserID, log, now)+1 > rapidVotingMax {
		flags = append(flags, entities.FraudFlag{
			Type:       entities.FraudFlagRapidVoting,
			Severity:   entities.FraudSeverityMedium,
			Confidence: 80,
			DetectedAt: now,
		})
	}

	if candidate.IPAddress != "" && sharedIP(candidate.IPAddress, log)+1 > duplicateIPMax {
		flags = append(flags, entities.FraudFlag{
			Type:       entities.FraudFlagDuplicateIP,
			Severity:   entities.FraudSeverityHigh,
			Confidence: 90,
			DetectedAt: now,
		})
	}

	// Heuristic: metronomic cadence. A user whose inter-vote gaps are nearly
	// constant across five or more votes is voting on a timer, not listening.
	if metronomicCadence(candidate, log, now) {
		flags = append(flags, entities.FraudFlag{
			Type:       entities.FraudFlagSuspiciousPattern,
			Severity:   entities.FraudSeverityLow,
			Confidence: 40,
			DetectedAt: now,
		})
	}

	return flags
}

func recentByUser(userID string, log []entities.Vote, now time.Time) int {
	cutoff := now.Add(-rapidVotingWindow)
	count := 0
	for _, vote := range log {
		if vote.UserID == userID && vote.Timestamp.After(cutoff) {
			count++
		}
	}
	return count
}

func sharedIP(ip string, log []entities.Vote) int {
	count := 0
	for _, vote := range log {
		if vote.IPAddress == ip {
			count++
		}
	}
	return count
}

func metronomicCadence(candidate entities.Vote, log []entities.Vote, now time.Time) bool {
	times := make([]time.Time, 0, len(log)+1)
	for _, vote := range log {
		if vote.UserID == candidate.UserID {
			times = append(times, vote.Timestamp)
		}
	}
	times = append(times, now)
	if len(times) < cadenceMinVotes {
		return false
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	minGap := time.Duration(-1)
	maxGap := time.Duration(0)
	for i := 1; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])
		if minGap < 0 || gap < minGap {
			minGap = gap
		}
		if gap > maxGap {
			maxGap = gap
		}
	}
	return maxGap-minGap < cadenceJitterCeiling
}
