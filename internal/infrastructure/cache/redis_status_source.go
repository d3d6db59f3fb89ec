package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultStatusKeyPrefix = "drims:item_status"
	defaultStatusTTL       = 10 * time.Minute
)

// RedisStatusSource is a read-through cache in front of the item status
// table, shared by every server instance. Redis failures degrade to reading
// the underlying source directly.
type RedisStatusSource struct {
	client *redis.Client
	next   relief.StatusSource
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// RedisStatusSourceOption is a functional option for configuring the source
type RedisStatusSourceOption func(*RedisStatusSource)

// WithStatusTTL sets how long the shared copy lives
func WithStatusTTL(ttl time.Duration) RedisStatusSourceOption {
	return func(s *RedisStatusSource) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithStatusKeyPrefix sets the Redis key prefix
func WithStatusKeyPrefix(prefix string) RedisStatusSourceOption {
	return func(s *RedisStatusSource) {
		if prefix != "" {
			s.key = prefix + ":active"
		}
	}
}

// WithStatusLogger sets the logger
func WithStatusLogger(logger *zap.Logger) RedisStatusSourceOption {
	return func(s *RedisStatusSource) {
		s.logger = logger
	}
}

// NewRedisStatusSource wraps next with a Redis read-through cache.
// The caller retains ownership of client.
func NewRedisStatusSource(client *redis.Client, next relief.StatusSource, opts ...RedisStatusSourceOption) *RedisStatusSource {
	s := &RedisStatusSource{
		client: client,
		next:   next,
		key:    defaultStatusKeyPrefix + ":active",
		ttl:    defaultStatusTTL,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadActive returns the cached statuses, filling the cache on a miss.
func (s *RedisStatusSource) LoadActive(ctx context.Context) ([]relief.RequestItemStatus, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	switch {
	case err == nil:
		var statuses []relief.RequestItemStatus
		if jsonErr := json.Unmarshal(data, &statuses); jsonErr == nil {
			s.logger.Debug("Item status cache hit", zap.Int("count", len(statuses)))
			return statuses, nil
		}
		s.logger.Warn("Discarding corrupt item status cache entry", zap.String("key", s.key))
		_ = s.client.Del(ctx, s.key)
	case errors.Is(err, redis.Nil):
		s.logger.Debug("Item status cache miss", zap.String("key", s.key))
	default:
		s.logger.Warn("Item status cache unavailable, reading database", zap.Error(err))
		return s.next.LoadActive(ctx)
	}

	statuses, err := s.next.LoadActive(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(statuses)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item statuses: %w", err)
	}
	if err := s.client.Set(ctx, s.key, payload, s.ttl).Err(); err != nil {
		s.logger.Warn("Failed to cache item statuses", zap.Error(err))
	}
	return statuses, nil
}

// Invalidate drops the shared copy.
func (s *RedisStatusSource) Invalidate(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate item statuses: %w", err)
	}
	return nil
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

var _ relief.StatusSource = (*RedisStatusSource)(nil)
