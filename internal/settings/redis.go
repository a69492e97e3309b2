package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"vacancy_insight/internal/domain"
)

const DefaultRedisKey = "vacancy_insight:polling_settings"

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// RedisStore keeps the settings blob under a single key, shared by every
// process pointed at the same Redis.
type RedisStore struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

func NewRedisStore(client *redis.Client, key string, logger *slog.Logger) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{
		client: client,
		key:    key,
		logger: logger.With("component", "settings", "backend", "redis"),
	}
}

func (s *RedisStore) Load(ctx context.Context) (domain.PollingSettings, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.DefaultPollingSettings(), nil
	}
	if err != nil {
		return domain.PollingSettings{}, fmt.Errorf("get settings: %w", err)
	}
	return decode(data, s.logger), nil
}

func (s *RedisStore) Save(ctx context.Context, settings domain.PollingSettings) error {
	data, err := encode(settings)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set settings: %w", err)
	}

	s.logger.Info("settings saved", "key", s.key, "enabled", settings.Enabled, "limit", settings.Limit)
	return nil
}
