package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrBattleNotFound      = errors.New("battle not found")
	ErrTrackNotFound       = errors.New("track not found in battle")
	ErrInvalidBattleConfig = errors.New("invalid battle configuration")
	ErrBattleNotDraft      = errors.New("battle is not in draft status")
	ErrBattleNotVoting     = errors.New("battle is not accepting votes")
	ErrBattleAlreadyEnded  = errors.New("battle has already ended")
	ErrBattleFull          = errors.New("battle participant capacity reached")
	ErrNotEnoughTracks     = errors.New("battle is below minimum participants")
	ErrDuplicateTrack      = errors.New("track already submitted to battle")
	ErrVoteConflict        = errors.New("user already voted and vote changes are disallowed")
	ErrVoteNotFound        = errors.New("vote not found")
	ErrConflict            = errors.New("conflicting state change")
	ErrRateLimited         = errors.New("vote rate limit exceeded")
	ErrBattleBusy          = errors.New("battle is busy, retry the operation")
	ErrIdempotencyConflict = errors.New("session replay conflict")
)

// RateLimitError carries the reason a vote was throttled and how long the
// caller should wait before retrying. It matches ErrRateLimited under
// errors.Is so transports can map it without knowing the concrete type.
type RateLimitError struct {
	Reason     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: %s, retry after %s", ErrRateLimited.Error(), e.Reason, e.RetryAfter)
	}
	return fmt.Sprintf("%s: %s", ErrRateLimited.Error(), e.Reason)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
