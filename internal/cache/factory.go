package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	BackendMemory  = "memory"
	BackendBounded = "bounded"
	BackendRedis   = "redis"
)

type Config struct {
	Backend    string
	DefaultTTL time.Duration // also the memory sweeper interval
	MaxEntries int
	Prefix     string
}

// New builds the configured store wrapped with logging and metrics.
// redisClient is only used by the redis backend.
func New(cfg Config, redisClient *redis.Client) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Backend {
	case BackendRedis:
		if redisClient == nil {
			return nil, errors.New("cache: redis backend requires a redis client")
		}
		store = NewRedis(redisClient, RedisConfig{Prefix: cfg.Prefix})
	case BackendBounded:
		store, err = NewBounded(cfg.MaxEntries, nil)
		if err != nil {
			return nil, err
		}
	case BackendMemory, "":
		store = NewMemory(cfg.DefaultTTL)
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}

	backend := cfg.Backend
	if backend == "" {
		backend = BackendMemory
	}
	return NewLogging(store, backend), nil
}

// Close releases background resources of the underlying store, if any.
func Close(s Store) error {
	if l, ok := s.(*Logging); ok {
		s = l.inner
	}
	if closer, ok := s.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Ping checks the connection of a remote store. In-process stores always
// answer nil.
func Ping(ctx context.Context, s Store) error {
	if l, ok := s.(*Logging); ok {
		s = l.inner
	}
	if pinger, ok := s.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	return nil
}
