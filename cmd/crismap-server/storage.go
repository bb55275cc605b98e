package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/crismap/server/internal/config"
	"github.com/crismap/server/internal/kvstore"
)

// openKV opens the configured snapshot backend. The returned close function is never nil.
func openKV(ctx context.Context, cfg *config.Config, logger *zap.Logger) (kvstore.Store, func(), error) {
	noop := func() {}

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		logger.Warn("Using in-memory storage; edits are lost on restart")
		return kvstore.NewMemory(), noop, nil

	case config.BackendFile:
		store, err := kvstore.NewFile(cfg.Storage.FileDir)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("Using file storage", zap.String("dir", cfg.Storage.FileDir))
		return store, noop, nil

	case config.BackendRedis:
		client := kvstore.NewRedisClient(kvstore.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := kvstore.NewRedis(client, cfg.Redis.KeyPrefix)
		if err := store.Ping(ctx); err != nil {
			client.Close()
			return nil, noop, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info("Using redis storage", zap.String("addr", cfg.Redis.Addr), zap.String("prefix", cfg.Redis.KeyPrefix))
		return store, func() { client.Close() }, nil

	case config.BackendPostgres:
		db, err := kvstore.OpenPostgres(ctx, kvstore.PostgresConfig{
			URL:             cfg.Database.DatabaseURL(),
			MaxConnections:  cfg.Database.MaxConnections,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, noop, err
		}
		store := kvstore.NewPostgres(db, cfg.Database.Table)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, noop, err
		}
		logger.Info("Using postgres storage",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Database))
		return store, func() { db.Close() }, nil
	}
	return nil, noop, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
