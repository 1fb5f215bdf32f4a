// Package correlation holds the pending reply handles of open interactions,
// keyed by transaction, until the reply that completes them is produced.
package correlation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/illmade-knight/go-malhttp/pkg/mal"
	"github.com/rs/zerolog"
)

var (
	// ErrDuplicateKey is returned when a key is stored while already registered.
	ErrDuplicateKey = errors.New("correlation: duplicate key")

	// ErrUnknownKey is returned when a key that is not registered is taken.
	ErrUnknownKey = errors.New("correlation: unknown key")
)

// StoreConfig holds configuration for a Store.
type StoreConfig struct {
	// Shards is the number of independently locked partitions.
	Shards int
	// TTL is how long an entry may wait for its reply before Reap removes it.
	TTL time.Duration
}

// NewStoreDefaults provides a config with sensible defaults.
func NewStoreDefaults() StoreConfig {
	return StoreConfig{
		Shards: 32,
		TTL:    60 * time.Second,
	}
}

type entry[V any] struct {
	value   V
	expires time.Time
}

type shard[V any] struct {
	mu   sync.Mutex
	data map[mal.Key]entry[V]
}

// Store is a concurrency-safe map from transaction key to a pending reply handle.
// Operations on keys in different shards never contend. When a Registry is
// configured, keys are also claimed there so that instances sharing it never
// register the same transaction twice.
type Store[V any] struct {
	shards   []*shard[V]
	ttl      time.Duration
	registry Registry
	logger   zerolog.Logger
	now      func() time.Time
}

// NewStore creates a Store. registry may be nil.
func NewStore[V any](cfg StoreConfig, registry Registry, logger zerolog.Logger) *Store[V] {
	defaults := NewStoreDefaults()
	if cfg.Shards <= 0 {
		cfg.Shards = defaults.Shards
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaults.TTL
	}
	shards := make([]*shard[V], cfg.Shards)
	for i := range shards {
		shards[i] = &shard[V]{data: make(map[mal.Key]entry[V])}
	}
	return &Store[V]{
		shards:   shards,
		ttl:      cfg.TTL,
		registry: registry,
		logger:   logger.With().Str("component", "CorrelationStore").Logger(),
		now:      time.Now,
	}
}

func (s *Store[V]) shardFor(key mal.Key) *shard[V] {
	d := xxhash.New()
	_, _ = d.WriteString(key.URI)
	_, _ = d.WriteString(strconv.FormatInt(key.TransactionID, 10))
	return s.shards[d.Sum64()%uint64(len(s.shards))]
}

// Store registers value under key.
func (s *Store[V]) Store(ctx context.Context, key mal.Key, value V) error {
	if s.registry != nil {
		if err := s.registry.Claim(ctx, key); err != nil {
			return fmt.Errorf("failed to claim %s: %w", key, err)
		}
	}

	sh := s.shardFor(key)
	sh.mu.Lock()
	if _, exists := sh.data[key]; exists {
		sh.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateKey, key)
	}
	sh.data[key] = entry[V]{value: value, expires: s.now().Add(s.ttl)}
	sh.mu.Unlock()

	s.logger.Debug().Str("key", key.String()).Msg("Stored pending exchange.")
	return nil
}

// Take removes and returns the value registered under key.
func (s *Store[V]) Take(ctx context.Context, key mal.Key) (V, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	e, ok := sh.data[key]
	if ok {
		delete(sh.data, key)
	}
	sh.mu.Unlock()

	if !ok {
		var zero V
		return zero, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	s.release(ctx, key)
	s.logger.Debug().Str("key", key.String()).Msg("Took pending exchange.")
	return e.value, nil
}

func (s *Store[V]) release(ctx context.Context, key mal.Key) {
	if s.registry == nil {
		return
	}
	if err := s.registry.Release(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to release key in registry.")
	}
}

// Len returns the number of pending entries.
func (s *Store[V]) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.data)
		sh.mu.Unlock()
	}
	return n
}

// Reap removes every entry whose TTL has passed at now and returns them.
func (s *Store[V]) Reap(ctx context.Context, now time.Time) map[mal.Key]V {
	return s.remove(ctx, func(e entry[V]) bool { return !now.Before(e.expires) })
}

// Drain removes and returns every entry.
func (s *Store[V]) Drain(ctx context.Context) map[mal.Key]V {
	return s.remove(ctx, func(entry[V]) bool { return true })
}

func (s *Store[V]) remove(ctx context.Context, match func(entry[V]) bool) map[mal.Key]V {
	removed := make(map[mal.Key]V)
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, e := range sh.data {
			if match(e) {
				removed[k] = e.value
				delete(sh.data, k)
			}
		}
		sh.mu.Unlock()
	}
	for k := range removed {
		s.release(ctx, k)
	}
	return removed
}

// RunReaper calls Reap every interval until ctx is done, handing each expired
// entry to onExpired.
func (s *Store[V]) RunReaper(ctx context.Context, interval time.Duration, onExpired func(mal.Key, V)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			expired := s.Reap(ctx, now)
			if len(expired) > 0 {
				s.logger.Warn().Int("count", len(expired)).Msg("Reaped pending exchanges that were never answered.")
			}
			for k, v := range expired {
				onExpired(k, v)
			}
		}
	}
}
