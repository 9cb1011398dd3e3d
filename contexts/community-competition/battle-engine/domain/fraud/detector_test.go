package fraud

import (
	"testing"
	"time"

	"stemstation/contexts/community-competition/battle-engine/domain/entities"
)

func TestScoreUsesSeverityWeights(t *testing.T) {
	now := time.Now().UTC()
	flags := []entities.FraudFlag{
		{Type: entities.FraudFlagNewAccount, Severity: entities.FraudSeverityLow, Confidence: 10, DetectedAt: now},
		{Type: entities.FraudFlagRapidVoting, Severity: entities.FraudSeverityMedium, Confidence: 10, DetectedAt: now},
		{Type: entities.FraudFlagDuplicateIP, Severity: entities.FraudSeverityHigh, Confidence: 10, DetectedAt: now},
		{Type: entities.FraudFlagBotBehavior, Severity: entities.FraudSeverityCritical, Confidence: 10, DetectedAt: now},
	}
	if got := Score(flags); got != 110 {
		t.Fatalf("expected score 110, got %f", got)
	}
	if got := Score(nil); got != 0 {
		t.Fatalf("expected empty score 0, got %f", got)
	}
}

func TestAnalyzeCleanVoteHasNoFlags(t *testing.T) {
	now := time.Now().UTC()
	candidate := entities.Vote{UserID: "user-1", IPAddress: "10.0.0.1", Timestamp: now}
	log := []entities.Vote{
		{UserID: "user-2", IPAddress: "10.0.0.2", Timestamp: now.Add(-10 * time.Minute)},
	}
	if flags := Analyze(candidate, log, now); len(flags) != 0 {
		t.Fatalf("expected no flags, got %v", flags)
	}
}

func TestAnalyzeFlagsRapidVoting(t *testing.T) {
	now := time.Now().UTC()
	log := []entities.Vote{
		{UserID: "user-1", Timestamp: now.Add(-50 * time.Second)},
		{UserID: "user-1", Timestamp: now.Add(-30 * time.Second)},
		{UserID: "user-1", Timestamp: now.Add(-10 * time.Second)},
	}
	candidate := entities.Vote{UserID: "user-1", Timestamp: now}

	flags := Analyze(candidate, log, now)
	if !hasFlag(flags, entities.FraudFlagRapidVoting) {
		t.Fatalf("expected rapid_voting flag, got %v", flags)
	}
	if Score(flags) < VerificationThreshold {
		t.Fatalf("rapid voting should push the score past the verification threshold")
	}
}

func TestAnalyzeIgnoresOldVotesForRapidVoting(t *testing.T) {
	now := time.Now().UTC()
	log := []entities.Vote{
		{UserID: "user-1", Timestamp: now.Add(-10 * time.Minute)},
		{UserID: "user-1", Timestamp: now.Add(-8 * time.Minute)},
		{UserID: "user-1", Timestamp: now.Add(-6 * time.Minute)},
	}
	candidate := entities.Vote{UserID: "user-1", Timestamp: now}

	if flags := Analyze(candidate, log, now); hasFlag(flags, entities.FraudFlagRapidVoting) {
		t.Fatalf("votes outside the window must not count as rapid voting")
	}
}

func TestAnalyzeFlagsSharedIP(t *testing.T) {
	now := time.Now().UTC()
	log := make([]entities.Vote, 0, 5)
	for i := 0; i < 5; i++ {
		log = append(log, entities.Vote{
			UserID:    "user-" + string(rune('a'+i)),
			IPAddress: "203.0.113.7",
			Timestamp: now.Add(-time.Duration(i+10) * time.Minute),
		})
	}
	candidate := entities.Vote{UserID: "user-z", IPAddress: "203.0.113.7", Timestamp: now}

	flags := Analyze(candidate, log, now)
	if !hasFlag(flags, entities.FraudFlagDuplicateIP) {
		t.Fatalf("expected duplicate_ip flag, got %v", flags)
	}
}

func TestAnalyzeSkipsIPRuleWithoutAddress(t *testing.T) {
	now := time.Now().UTC()
	log := make([]entities.Vote, 0, 6)
	for i := 0; i < 6; i++ {
		log = append(log, entities.Vote{UserID: "user-x", IPAddress: "", Timestamp: now.Add(-time.Duration(i+10) * time.Minute)})
	}
	candidate := entities.Vote{UserID: "user-y", IPAddress: "", Timestamp: now}

	if flags := Analyze(candidate, log, now); hasFlag(flags, entities.FraudFlagDuplicateIP) {
		t.Fatalf("empty addresses must not trigger the duplicate ip rule")
	}
}

func TestAnalyzeFlagsMetronomicCadence(t *testing.T) {
	now := time.Now().UTC()
	log := []entities.Vote{
		{UserID: "user-1", Timestamp: now.Add(-40 * time.Minute)},
		{UserID: "user-1", Timestamp: now.Add(-30 * time.Minute)},
		{UserID: "user-1", Timestamp: now.Add(-20 * time.Minute)},
		{UserID: "user-1", Timestamp: now.Add(-10 * time.Minute)},
	}
	candidate := entities.Vote{UserID: "user-1", Timestamp: now}

	flags := Analyze(candidate, log, now)
	if !hasFlag(flags, entities.FraudFlagSuspiciousPattern) {
		t.Fatalf("expected suspicious_pattern flag for constant gaps, got %v", flags)
	}
	// Low severity alone stays under the threshold.
	if got := Score(flags); got >= VerificationThreshold+40 {
		t.Fatalf("unexpected score %f", got)
	}
}

func TestAnalyzeAllowsHumanCadence(t *testing.T) {
	now := time.Now().UTC()
	log := []entities.Vote{
		{UserID: "user-1", Timestamp: now.Add(-47 * time.Minute)},
		{UserID: "user-1", Timestamp: now.Add(-31 * time.Minute)},
		{UserID: "user-1", Timestamp: now.Add(-22 * time.Minute)},
		{UserID: "user-1", Timestamp: now.Add(-9 * time.Minute)},
	}
	candidate := entities.Vote{UserID: "user-1", Timestamp: now}

	if flags := Analyze(candidate, log, now); hasFlag(flags, entities.FraudFlagSuspiciousPattern) {
		t.Fatalf("irregular gaps must not be flagged as a pattern")
	}
}

func hasFlag(flags []entities.FraudFlag, flagType entities.FraudFlagType) bool {
	for _, flag := range flags {
		if flag.Type == flagType {
			return true
		}
	}
	return false
}
