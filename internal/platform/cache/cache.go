// Package cache stores short-lived values such as gateway access tokens.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/marketplace/pkg/config"
)

type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Get returns "" without error when the key is missing or expired.
	Get(ctx context.Context, key string) (string, error)
	GenerateKey(operation, key string) string
}

type redisCache struct {
	client      *redis.Client
	serviceName string
}

func NewRedisCache(cfg cfgpkg.RedisConfig, serviceName string) Cache {
	return &redisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		serviceName: serviceName,
	}
}

func (r *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (r *redisCache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", r.serviceName, operation, key)
}

func (r *redisCache) Close() error { return r.client.Close() }

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// memoryCache serves single-instance deployments that run without redis.
type memoryCache struct {
	mu          sync.Mutex
	items       map[string]memoryEntry
	serviceName string
	now         func() time.Time
}

func NewMemoryCache(serviceName string) Cache {
	return &memoryCache{items: map[string]memoryEntry{}, serviceName: serviceName, now: time.Now}
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{value: fmt.Sprint(value)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = e
	return nil
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		return "", nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.items, key)
		return "", nil
	}
	return e.value, nil
}

func (m *memoryCache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", m.serviceName, operation, key)
}

const serviceName = "marketplace"

// New returns a redis cache when redis.addr is set, otherwise an in-process one.
func New(lc fx.Lifecycle, cfg *cfgpkg.Config, log *zap.SugaredLogger) Cache {
	if cfg.Redis.Addr == "" {
		log.Infow("cache: redis not configured, using in-memory cache")
		return NewMemoryCache(serviceName)
	}
	c := NewRedisCache(cfg.Redis, serviceName).(*redisCache)
	lc.Append(fx.StopHook(c.Close))
	log.Infow("cache: using redis", "addr", cfg.Redis.Addr)
	return c
}

var Module = fx.Options(
	fx.Provide(New),
)
