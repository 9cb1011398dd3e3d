package battleengine

import (
	"log/slog"
	"time"

	httpadapter "stemstation/contexts/community-competition/battle-engine/adapters/http"
	"stemstation/contexts/community-competition/battle-engine/adapters/memory"
	"stemstation/contexts/community-competition/battle-engine/application/commands"
	"stemstation/contexts/community-competition/battle-engine/application/queries"
	"stemstation/contexts/community-competition/battle-engine/domain/entities"
	"stemstation/contexts/community-competition/battle-engine/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Battles commands.BattleUseCase
	Votes   commands.VoteUseCase
	Store   *memory.Store
}

type Dependencies struct {
	Battles        ports.BattleRepository
	Votes          ports.VoteRepository
	RateLimits     ports.RateLimitRepository
	Reputation     ports.ReputationSource
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	Locks          *commands.BattleLocks
	LockWait       time.Duration
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	locks := deps.Locks
	if locks == nil {
		locks = commands.NewBattleLocks(deps.LockWait)
	}
	limiter := commands.RateLimiter{
		Limits: deps.RateLimits,
		Logger: deps.Logger,
	}
	battleUseCase := commands.BattleUseCase{
		Battles: deps.Battles,
		Votes:   deps.Votes,
		Outbox:  deps.Outbox,
		Clock:   deps.Clock,
		IDGen:   deps.IDGen,
		Locks:   locks,
		Logger:  deps.Logger,
	}
	voteUseCase := commands.VoteUseCase{
		Battles:        deps.Battles,
		Votes:          deps.Votes,
		Limiter:        limiter,
		Reputation:     deps.Reputation,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		Locks:          locks,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	standingsUseCase := queries.StandingsUseCase{
		Battles: deps.Battles,
		Votes:   deps.Votes,
	}
	return Module{
		Handler: httpadapter.Handler{
			Battles:   battleUseCase,
			Votes:     voteUseCase,
			Standings: standingsUseCase,
			Logger:    deps.Logger,
		},
		Battles: battleUseCase,
		Votes:   voteUseCase,
	}
}

func NewInMemoryModule(seed []entities.Battle, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Battles:        store,
		Votes:          store,
		RateLimits:     store,
		Reputation:     store,
		Idempotency:    store,
		Outbox:         store,
		Clock:          store,
		IDGen:          store,
		IdempotencyTTL: 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
