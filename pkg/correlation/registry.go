package correlation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/illmade-knight/go-malhttp/pkg/mal"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Registry claims transaction keys outside the process, so that several
// transport instances serving the same endpoint never hold the same transaction.
type Registry interface {
	// Claim registers key, failing with ErrDuplicateKey if it is already held.
	Claim(ctx context.Context, key mal.Key) error
	// Release drops key, failing with ErrUnknownKey if it is not held.
	Release(ctx context.Context, key mal.Key) error
	io.Closer
}

// RedisConfig holds the configuration for the Redis client.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces the claimed keys.
	KeyPrefix string
	// TTL bounds a claim whose release never arrives.
	TTL time.Duration
	// Owner is stored as the value of each claim, for diagnostics.
	Owner string
}

// RedisRegistry is a Registry backed by Redis SETNX with a TTL.
type RedisRegistry struct {
	redisClient *redis.Client
	logger      zerolog.Logger
	prefix      string
	ttl         time.Duration
	owner       string
}

// NewRedisRegistry creates and connects a new RedisRegistry.
func NewRedisRegistry(ctx context.Context, cfg *RedisConfig, logger zerolog.Logger) (*RedisRegistry, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis for correlation registry: %w", err)
	}
	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis for correlation registry.")

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "malhttp:txn:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = NewStoreDefaults().TTL
	}
	return &RedisRegistry{
		redisClient: rdb,
		logger:      logger.With().Str("component", "RedisRegistry").Logger(),
		prefix:      prefix,
		ttl:         ttl,
		owner:       cfg.Owner,
	}, nil
}

func (r *RedisRegistry) redisKey(key mal.Key) string {
	return r.prefix + key.String()
}

// Claim stores the key only if no one holds it yet.
func (r *RedisRegistry) Claim(ctx context.Context, key mal.Key) error {
	ok, err := r.redisClient.SetNX(ctx, r.redisKey(key), r.owner, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx failed for key %s: %w", key, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, key)
	}
	return nil
}

// Release removes the key.
func (r *RedisRegistry) Release(ctx context.Context, key mal.Key) error {
	n, err := r.redisClient.Del(ctx, r.redisKey(key)).Result()
	if err != nil {
		return fmt.Errorf("redis del failed for key %s: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

// Owner returns the owner recorded for a claimed key.
func (r *RedisRegistry) Owner(ctx context.Context, key mal.Key) (string, error) {
	v, err := r.redisClient.Get(ctx, r.redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed for key %s: %w", key, err)
	}
	return v, nil
}

// Close closes the Redis client connection.
func (r *RedisRegistry) Close() error {
	if r.redisClient != nil {
		r.logger.Info().Msg("Closing Redis client connection...")
		return r.redisClient.Close()
	}
	return nil
}
