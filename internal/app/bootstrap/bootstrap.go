package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	battleengine "stemstation/contexts/community-competition/battle-engine"
	postgresadapter "stemstation/contexts/community-competition/battle-engine/adapters/postgres"
	redisadapter "stemstation/contexts/community-competition/battle-engine/adapters/redis"
	"stemstation/contexts/community-competition/battle-engine/application/commands"
	workerapp "stemstation/contexts/community-competition/battle-engine/application/workers"
	"stemstation/contexts/community-competition/battle-engine/ports"
	"stemstation/internal/platform/cache"
	"stemstation/internal/platform/config"
	"stemstation/internal/platform/db"
	"stemstation/internal/platform/httpserver"
	"stemstation/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	redis    *cache.Redis
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	outboxRelay  workerapp.OutboxRelay
	closer       workerapp.BattleCloser
	enableRelay  bool
	enableCloser bool
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)

	var redisConn *cache.Redis
	var rateLimits ports.RateLimitRepository = repo
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		redisConn, err = cache.Connect(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			_ = pg.Close()
			return nil, err
		}
		rateLimits = redisadapter.NewRateLimitStore(redisConn.Client, logger)
	}

	module := battleengine.NewModule(battleengine.Dependencies{
		Battles:        repo,
		Votes:          repo,
		RateLimits:     rateLimits,
		Reputation:     repo,
		Idempotency:    repo,
		Outbox:         repo,
		Clock:          postgresadapter.SystemClock{},
		IDGen:          postgresadapter.UUIDGenerator{},
		LockWait:       cfg.BattleLockWait,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Logger:         logger,
	})

	server := httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		redis:    redisConn,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	battleUseCase := commands.BattleUseCase{
		Battles: repo,
		Votes:   repo,
		Outbox:  repo,
		Clock:   postgresadapter.SystemClock{},
		IDGen:   postgresadapter.UUIDGenerator{},
		Locks:   commands.NewBattleLocks(cfg.BattleLockWait),
		Logger:  logger,
	}

	return &WorkerApp{
		postgres: pg,
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    repo,
			Publisher: kafka,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		closer: workerapp.BattleCloser{
			Battles:   repo,
			UseCase:   battleUseCase,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: 50,
			Logger:    logger,
		},
		enableRelay:  cfg.EnableOutboxRelay,
		enableCloser: cfg.EnableBattleCloser,
		pollInterval: 2 * time.Second,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"battle_closer", w.enableCloser,
		"outbox_relay", w.enableRelay,
	)

	for {
		if w.enableCloser {
			if err := w.closer.RunOnce(ctx); err != nil {
				return err
			}
		}
		if w.enableRelay {
			if err := w.outboxRelay.RunOnce(ctx); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
