//go:build integration

package kvstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Alae213/gayla-shop-sub001/internal/platform/config"
	"github.com/Alae213/gayla-shop-sub001/internal/platform/kvstore"
)

func TestRedisStoreIntegration(t *testing.T) {
	addr := os.Getenv("GAYLA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GAYLA_TEST_REDIS_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := kvstore.NewRedisStore(config.RedisConfig{
		Addr:      addr,
		PoolSize:  2,
		KeyPrefix: "gayla-test:" + time.Now().UTC().Format("150405.000000") + ":",
	}, kvstore.WithTTL(time.Minute))
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Ping(ctx))

	_, found, err := store.Get(ctx, "cart")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Set(ctx, "cart", `{"items":[]}`))
	value, found, err := store.Get(ctx, "cart")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `{"items":[]}`, value)

	require.NoError(t, store.Remove(ctx, "cart"))
	_, found, err = store.Get(ctx, "cart")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Close())
	require.ErrorIs(t, store.Set(ctx, "cart", "x"), kvstore.ErrClosed)
}
