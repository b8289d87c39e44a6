package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jacksonlee411/harbor-erp/modules/masterdata/infrastructure/persistence"
	"github.com/jacksonlee411/harbor-erp/modules/pdftools/infrastructure/artifacts"
)

const sweepInterval = time.Minute

// Stores holds the backends picked by Config. Close releases them.
type Stores struct {
	Options HandlerOptions
	closers []func()
}

func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// OpenStores connects the configured backends. The in-memory artifact store
// is swept in the background until ctx is done.
func OpenStores(ctx context.Context, cfg Config, logger *zap.Logger) (*Stores, error) {
	s := &Stores{Options: HandlerOptions{Config: cfg, Logger: logger}}

	if cfg.MasterDataStore == StorePG {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		s.Options.Records = persistence.NewRecordPGStore(pool)
		s.Options.Checks = append(s.Options.Checks, HealthCheck{Name: "postgres", Ping: pool.Ping})
		logger.Info("masterdata store", zap.String("store", StorePG))
	} else {
		s.Options.Records = persistence.NewRecordMemoryStore()
		logger.Info("masterdata store", zap.String("store", StoreMemory))
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		s.closers = append(s.closers, func() { _ = client.Close() })
		s.Options.Artifacts = artifacts.NewRedisStore(client, artifacts.WithTTL(cfg.ArtifactTTL))
		s.Options.Checks = append(s.Options.Checks, HealthCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return client.Ping(ctx).Err() },
		})
		logger.Info("artifact store", zap.String("store", "redis"), zap.String("addr", cfg.RedisAddr))
	} else {
		mem := artifacts.NewMemoryStore()
		sweepCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			mem.Run(sweepCtx, sweepInterval)
		}()
		s.closers = append(s.closers, func() {
			cancel()
			<-done
		})
		s.Options.Artifacts = mem
		logger.Info("artifact store", zap.String("store", StoreMemory))
	}
	return s, nil
}
