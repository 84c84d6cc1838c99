//go:build integration

package location

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/Forken21/botsat/internal/transform"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	addr, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(addr)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	client := startRedis(t)
	suite.Run(t, &StoreSuite{newStore: func() Store {
		require.NoError(t, client.FlushAll(context.Background()).Err())
		return NewRedisStore(client)
	}})
}

func TestRedisStoreLayoutAndTTL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	client := startRedis(t)
	store := NewRedisStore(client, WithTTL(time.Hour))

	obs, err := transform.NewObserver(55.75, 37.62, 150)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "42", obs))

	raw, err := client.Get(ctx, "botsat:location:42").Result()
	require.NoError(t, err)
	require.JSONEq(t, `{"lat":55.75,"lon":37.62,"alt":150}`, raw)

	ttl, err := client.TTL(ctx, "botsat:location:42").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, 59*time.Minute)

	// Corrupt records surface as errors, not as a zero observer.
	require.NoError(t, client.Set(ctx, "botsat:location:bad", "{", 0).Err())
	_, err = store.Get(ctx, "bad")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
	require.NoError(t, store.Ping(ctx))
}
