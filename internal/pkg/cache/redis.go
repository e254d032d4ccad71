package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"perfsummary/internal/pkg/config"
	"perfsummary/internal/pkg/logger"
)

const DefaultKeyPrefix = "perfsummary:fielddata:"

// Implements Cache with Redis as the backing store. Each entry is a plain
// string key carrying its own expiry.
type redisCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// Connects to the Redis instance named by the config and verifies it answers.
func NewRedisCache(config *config.Config) (Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", config.RedisHost, config.RedisPort),
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "ping redis")
	}

	logger.Log.Info("Connected to Redis successfully",
		zap.String("host", config.RedisHost),
		zap.String("port", config.RedisPort),
	)

	return &redisCache{
		client:    rdb,
		keyPrefix: DefaultKeyPrefix,
		ttl:       config.FieldDataCacheTTL,
	}, nil
}

// A lookup error counts as a miss so that the cache never blocks enrichment.
func (c *redisCache) Get(ctx context.Context, key string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	value, err := c.client.Get(ctx, c.keyPrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.Warn("Redis cache lookup failed", zap.Error(err))
		}
		return "", false
	}
	return value, true
}

func (c *redisCache) Set(ctx context.Context, key, value string) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := c.client.Set(ctx, c.keyPrefix+key, value, c.ttl).Err(); err != nil {
		logger.Log.Warn("Failed to store field data in Redis", zap.Error(err))
	}
}

func (c *redisCache) Close() error {
	return c.client.Close()
}
