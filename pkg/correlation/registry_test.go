package correlation_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/illmade-knight/go-malhttp/pkg/correlation"
	"github.com/illmade-knight/go-malhttp/pkg/mal"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, owner string) (*correlation.RedisRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	registry, err := correlation.NewRedisRegistry(context.Background(), &correlation.RedisConfig{
		Addr:  mr.Addr(),
		TTL:   time.Minute,
		Owner: owner,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Close() })
	return registry, mr
}

func TestRedisRegistry(t *testing.T) {
	ctx := context.Background()
	registry, mr := newTestRegistry(t, "instance-1")
	key := mal.Key{URI: "malhttp://consumer/app", TransactionID: 9}

	t.Run("Claim, Release cycle", func(t *testing.T) {
		// Act
		require.NoError(t, registry.Claim(ctx, key))

		// Assert
		owner, err := registry.Owner(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "instance-1", owner)
		assert.True(t, mr.Exists("malhttp:txn:"+key.String()))

		require.NoError(t, registry.Release(ctx, key))
		assert.False(t, mr.Exists("malhttp:txn:"+key.String()))
	})

	t.Run("Duplicate claim", func(t *testing.T) {
		require.NoError(t, registry.Claim(ctx, key))
		t.Cleanup(func() { _ = registry.Release(ctx, key) })

		err := registry.Claim(ctx, key)
		assert.ErrorIs(t, err, correlation.ErrDuplicateKey)
	})

	t.Run("Release unknown", func(t *testing.T) {
		err := registry.Release(ctx, mal.Key{URI: "malhttp://nobody/app", TransactionID: 1})
		assert.ErrorIs(t, err, correlation.ErrUnknownKey)
	})

	t.Run("Claim expires", func(t *testing.T) {
		require.NoError(t, registry.Claim(ctx, key))
		mr.FastForward(2 * time.Minute)

		require.NoError(t, registry.Claim(ctx, key), "an expired claim can be taken again")
		require.NoError(t, registry.Release(ctx, key))
	})
}

func TestNewRedisRegistry_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := correlation.NewRedisRegistry(context.Background(), &correlation.RedisConfig{Addr: addr}, zerolog.Nop())
	require.Error(t, err)
}

func TestStore_WithRegistry(t *testing.T) {
	ctx := context.Background()
	registry, _ := newTestRegistry(t, "shared")
	key := mal.Key{URI: "malhttp://consumer/app", TransactionID: 3}

	// Arrange: two stores sharing one registry stand in for two instances.
	first := correlation.NewStore[string](correlation.NewStoreDefaults(), registry, zerolog.Nop())
	second := correlation.NewStore[string](correlation.NewStoreDefaults(), registry, zerolog.Nop())

	// Act
	require.NoError(t, first.Store(ctx, key, "mine"))
	err := second.Store(ctx, key, "theirs")

	// Assert
	require.ErrorIs(t, err, correlation.ErrDuplicateKey)
	assert.Equal(t, 0, second.Len())

	v, err := first.Take(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "mine", v)

	require.NoError(t, second.Store(ctx, key, "theirs"), "a released key can be claimed by another instance")
}
