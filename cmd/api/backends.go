package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/citizenhub/complaint-service/internal/api/http/handlers"
	"github.com/citizenhub/complaint-service/internal/config"
	"github.com/citizenhub/complaint-service/internal/persistence"
)

// backends holds the connections opened for the configured drivers.
type backends struct {
	records persistence.RecordStore
	pingers map[string]handlers.Pinger

	postgres *persistence.Postgres
	redis    *persistence.Redis
	sqlite   *sql.DB
}

func openBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backends, error) {
	b := &backends{pingers: map[string]handlers.Pinger{}}

	switch cfg.Store.Driver {
	case "postgres":
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.postgres = pg
		b.pingers["postgres"] = pg
		if pool := pg.PoolHandle(); pool != nil && cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				b.close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		b.records = persistence.NewPostgresRecords(pg.PoolHandle())
	case "redis":
		client := b.redisClient(ctx, cfg, logger)
		b.records = persistence.NewRedisRecords(client.Client, cfg.Store.RedisNS)
	case "sqlite":
		db, err := persistence.NewSQLite(ctx, cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		b.sqlite = db
		b.pingers["sqlite"] = handlers.PingFunc(db.PingContext)
		b.records = persistence.NewSQLRecords(db)
	default:
		logger.Warn("using in-memory record store; data is lost on restart")
		b.records = persistence.NewMemoryRecords()
	}
	return b, nil
}

// redisClient connects once and shares the client between store and dispatcher.
func (b *backends) redisClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) *persistence.Redis {
	if b.redis == nil {
		b.redis = persistence.NewRedis(ctx, cfg.Redis, logger)
		b.pingers["redis"] = b.redis
	}
	return b.redis
}

func (b *backends) close() {
	b.redis.Close()
	b.postgres.Close()
	if b.sqlite != nil {
		_ = b.sqlite.Close()
	}
}
