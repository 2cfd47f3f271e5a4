package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisFixedCountsAcrossCalls(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lim, err := NewRedisFixed(client, "pos-rl")
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		allowed, remaining, _, err := lim.Allow(ctx, "register-4", time.Minute, 3)
		require.NoError(t, err)
		require.True(t, allowed)
		require.Equal(t, 2-i, remaining)
	}
	allowed, remaining, reset, err := lim.Allow(ctx, "register-4", time.Minute, 3)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)
	require.True(t, reset.After(time.Now()))
}

func TestFixedDisabledWhenUnconfigured(t *testing.T) {
	allowed, remaining, _, err := Fixed{}.Allow(context.Background(), "k", time.Minute, 5)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 5, remaining)
}
