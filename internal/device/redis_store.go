package device

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/qzhari/envmon-server/internal/store"
	"github.com/redis/go-redis/v9"
)

const configKey = "envmon:device_config"

// RedisStore persists the configuration record as a JSON blob in Redis.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a store over the given Redis client.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{redis: redisClient}
}

// Load retrieves the persisted record. found is false when no record exists.
func (s *RedisStore) Load(ctx context.Context) (Config, bool, error) {
	data, err := s.redis.Get(ctx, configKey).Result()
	if err == redis.Nil {
		return Config{}, false, nil
	}
	if err != nil {
		return Config{}, false, &store.StorageError{Op: "load device config", Err: err}
	}

	var cfg Config
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return Config{}, false, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, true, nil
}

// Save writes the record. The config is a singleton, so there is no TTL.
func (s *RedisStore) Save(ctx context.Context, cfg Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := s.redis.Set(ctx, configKey, data, 0).Err(); err != nil {
		return &store.StorageError{Op: "save device config", Err: err}
	}
	return nil
}
