package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	application "stemstation/contexts/community-competition/battle-engine/application"
	"stemstation/contexts/community-competition/battle-engine/application/commands"
	domainerrors "stemstation/contexts/community-competition/battle-engine/domain/errors"
	"stemstation/contexts/community-competition/battle-engine/ports"
)

// BattleCloser settles battles whose voting window has passed, producing the
// same final results as an explicit end call.
type BattleCloser struct {
	Battles   ports.BattleRepository
	UseCase   commands.BattleUseCase
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce ends a bounded batch of overdue battles. A battle that settles or
// cancels concurrently is skipped; a busy lock defers the battle to the next
// cycle instead of failing it.
func (c BattleCloser) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	limit := c.BatchSize
	if limit <= 0 {
		limit = 50
	}
	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}

	due, err := c.Battles.ListBattlesDueForClose(ctx, now, limit)
	if err != nil {
		logger.Error("battle closer list failed",
			"event", "battle_closer_list_failed",
			"module", "community-competition/battle-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(due) == 0 {
		return nil
	}

	closed := 0
	for _, battle := range due {
		if _, err := c.UseCase.EndBattle(ctx, battle.BattleID); err != nil {
			if errors.Is(err, domainerrors.ErrBattleAlreadyEnded) ||
				errors.Is(err, domainerrors.ErrBattleBusy) {
				continue
			}
			logger.Error("battle closer end failed",
				"event", "battle_closer_end_failed",
				"module", "community-competition/battle-engine",
				"layer", "worker",
				"battle_id", battle.BattleID,
				"error", err.Error(),
			)
			return err
		}
		closed++
	}

	logger.Info("battle closer cycle completed",
		"event", "battle_closer_completed",
		"module", "community-competition/battle-engine",
		"layer", "worker",
		"due_count", len(due),
		"closed_count", closed,
	)
	return nil
}
