//go:build integration

package redis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"grunnlag/internal/platform/config"
	"grunnlag/internal/platform/redis"
	"grunnlag/pkg/testutil/containers"
)

func TestNew(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	t.Run("empty url disables redis", func(t *testing.T) {
		client, err := redis.New(ctx, config.RedisConfig{})
		require.NoError(t, err)
		require.Nil(t, client)
	})

	t.Run("connects and reports health", func(t *testing.T) {
		rc := containers.GetManager().GetRedis(t)
		client, err := redis.New(ctx, config.RedisConfig{URL: rc.URL, PoolSize: 2})
		require.NoError(t, err)
		defer client.Close()
		require.NoError(t, client.Health(ctx))
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := redis.New(ctx, config.RedisConfig{URL: "not a url"})
		require.Error(t, err)
	})
}
