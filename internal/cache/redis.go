package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/astromatch/astromatch/internal/telemetry"
)

// ErrCacheMiss is returned when a key is absent. Callers treat it as a miss,
// not a failure.
var ErrCacheMiss = errors.New("cache: key not found")

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// RedisService wraps the Redis client with JSON value helpers. All values go
// through json.Marshal so heterogeneous cache entries stay readable.
type RedisService struct {
	client *redis.Client
}

func NewRedisService(config *RedisConfig) (*RedisService, error) {
	ctx := telemetry.WithCorrelationID(context.Background(), telemetry.NewCorrelationID())
	logger := telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
		"operation": "redis_connection",
		"host":      config.Host,
		"port":      config.Port,
		"db":        config.DB,
		"pool_size": config.PoolSize,
	})

	logger.Info("Establishing Redis connection")

	client := redis.NewClient(&redis.Options{
		Addr:       fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:   config.Password,
		DB:         config.DB,
		PoolSize:   config.PoolSize,
		MaxRetries: 3,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Error("Failed to connect to Redis")
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connected successfully")
	return &RedisService{client: client}, nil
}

// NewInstrumentedRedisService connects with OpenTelemetry tracing enabled on
// every command.
func NewInstrumentedRedisService(config *RedisConfig) (*RedisService, error) {
	service, err := NewRedisService(config)
	if err != nil {
		return nil, err
	}
	telemetry.InstrumentRedisClient(service.client)
	return service, nil
}

// NewRedisServiceFromClient wraps an existing client. Tests use this with a
// miniredis-backed client.
func NewRedisServiceFromClient(client *redis.Client) *RedisService {
	return &RedisService{client: client}
}

// Set marshals value to JSON and stores it under key with the given TTL.
func (r *RedisService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for %s: %w", key, err)
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
			"operation": "redis_set",
			"key":       key,
		}).WithError(err).Error("Failed to set cache value")
		return err
	}
	return nil
}

// Get unmarshals the value stored under key into dest. Returns ErrCacheMiss
// when the key is absent or expired.
func (r *RedisService) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
			"operation": "redis_get",
			"key":       key,
		}).WithError(err).Error("Failed to get cache value")
		return err
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value for %s: %w", key, err)
	}
	return nil
}

// Delete removes the given keys. Missing keys are not an error.
func (r *RedisService) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// DeletePattern removes every key matching the glob pattern and returns how
// many were deleted.
func (r *RedisService) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	keys, err := r.client.Keys(ctx, pattern).Result()
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	return r.client.Del(ctx, keys...).Result()
}

func (r *RedisService) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (r *RedisService) TTL(ctx context.Context, key string) (time.Duration, error) {
	return r.client.TTL(ctx, key).Result()
}

func (r *RedisService) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisService) Close() error {
	return r.client.Close()
}
