package repositories

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"watchsync/internal/core/ports"
	"watchsync/internal/infrastructure/repositories/memory"
	pebblerepo "watchsync/internal/infrastructure/repositories/pebble"
	redisrepo "watchsync/internal/infrastructure/repositories/redis"
	"watchsync/pkg/config"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverPebble = "pebble"
)

// RepositoryFactory picks the room store from storage.driver. A backend
// that cannot be reached degrades to the in-memory store with a warning.
type RepositoryFactory struct {
	driver      string
	redisClient *redis.Client
	pebble      *pebblerepo.PebbleRoomRepository
	logger      *zap.SugaredLogger
}

func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		driver: cfg.Storage.Driver,
		logger: logger,
	}

	switch cfg.Storage.Driver {
	case DriverMemory, "":
		factory.driver = DriverMemory
	case DriverRedis:
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.driver = DriverMemory
		} else {
			factory.redisClient = client
		}
	case DriverPebble:
		repo, err := pebblerepo.Open(cfg.Storage.PebblePath)
		if err != nil {
			logger.Warnw("failed to open pebble store, falling back to memory repositories",
				"path", cfg.Storage.PebblePath,
				"error", err,
			)
			factory.driver = DriverMemory
		} else {
			factory.pebble = repo
		}
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	logger.Infow("room storage selected", "driver", factory.driver)
	return factory, nil
}

// Driver returns the backend actually in use after any fallback.
func (f *RepositoryFactory) Driver() string {
	return f.driver
}

func (f *RepositoryFactory) CreateRoomRepository() ports.RoomRepository {
	var repo ports.RoomRepository
	switch {
	case f.redisClient != nil:
		repo = redisrepo.NewRedisRoomRepository(f.redisClient)
	case f.pebble != nil:
		repo = f.pebble
	default:
		repo = memory.NewMemoryRoomRepository()
	}
	return newTracedRoomRepository(repo, f.driver)
}

func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return f.redisClient.Close()
	}
	if f.pebble != nil {
		return f.pebble.Close()
	}
	return nil
}

// HealthCheck pings Redis when it backs the store; other drivers are local.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
