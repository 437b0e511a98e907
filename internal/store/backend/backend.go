// Package backend opens the key-value store selected by configuration.
package backend

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/mindcheck/backend/internal/config"
	"github.com/zhouzirui/mindcheck/backend/internal/store"
	"github.com/zhouzirui/mindcheck/backend/internal/store/redis"
	"github.com/zhouzirui/mindcheck/backend/internal/store/sqlite"
)

// Store is a KV that owns a connection.
type Store interface {
	store.KV
	io.Closer
}

type memoryStore struct {
	*store.Memory
}

func (memoryStore) Close() error { return nil }

// Open returns the configured backend. The caller closes it on shutdown.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case config.StorageMemory, "":
		log.Warn().Str("component", "store").Msg("using in-memory store, profiles are lost on restart")
		return memoryStore{store.NewMemory()}, nil
	case config.StorageSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("component", "store").Str("path", cfg.SQLitePath).Msg("opened sqlite store")
		return s, nil
	case config.StorageRedis:
		s, err := redis.Dial(ctx, cfg.RedisURL, redis.WithTTL(cfg.RedisTTL))
		if err != nil {
			return nil, err
		}
		log.Info().Str("component", "store").Dur("ttl", cfg.RedisTTL).Msg("connected to redis store")
		return s, nil
	default:
		return nil, errors.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
