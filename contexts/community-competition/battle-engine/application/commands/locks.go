package commands

import (
	"context"
	"sync"
	"time"

	domainerrors "stemstation/contexts/community-competition/battle-engine/domain/errors"
)

const defaultLockWait = 2 * time.Second

// BattleLocks serializes writers per battle. Each battle gets a one-slot
// semaphore; a writer that cannot take the slot within the wait budget gets
// ErrBattleBusy so callers can retry instead of queuing unboundedly.
type BattleLocks struct {
	MaxWait time.Duration

	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewBattleLocks(maxWait time.Duration) *BattleLocks {
	if maxWait <= 0 {
		maxWait = defaultLockWait
	}
	return &BattleLocks{
		MaxWait: maxWait,
		slots:   make(map[string]chan struct{}),
	}
}

// Acquire blocks until the battle slot is free, the wait budget expires, or
// the context is cancelled. On success the returned release func must be
// called exactly once.
func (bl *BattleLocks) Acquire(ctx context.Context, battleID string) (func(), error) {
	slot := bl.slot(battleID)

	timer := time.NewTimer(bl.MaxWait)
	defer timer.Stop()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-timer.C:
		return nil, domainerrors.ErrBattleBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (bl *BattleLocks) slot(battleID string) chan struct{} {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	slot, ok := bl.slots[battleID]
	if !ok {
		slot = make(chan struct{}, 1)
		bl.slots[battleID] = slot
	}
	return slot
}
