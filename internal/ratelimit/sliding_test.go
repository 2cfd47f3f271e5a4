package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	limiter := Sliding{Client: client, Prefix: "rl:", Now: func() time.Time { return now }}
	ctx := context.Background()
	window := 10 * time.Second

	for want := 1; want >= 0; want-- {
		allowed, remaining, _, err := limiter.Allow(ctx, "lane-3", window, 2)
		require.NoError(t, err)
		require.True(t, allowed)
		require.Equal(t, want, remaining)
		now = now.Add(time.Second)
	}

	allowed, remaining, reset, err := limiter.Allow(ctx, "lane-3", window, 2)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 0, remaining)
	require.WithinDuration(t, time.Date(2026, 3, 2, 9, 0, 10, 0, time.UTC), reset, time.Millisecond)

	// the first request leaves the window, freeing one slot
	now = now.Add(9 * time.Second)
	allowed, _, _, err = limiter.Allow(ctx, "lane-3", window, 2)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestSlidingKeysAreIndependent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter := Sliding{Client: client, Prefix: "rl:"}

	allowed, _, _, err := limiter.Allow(context.Background(), "a", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed)
	allowed, _, _, err = limiter.Allow(context.Background(), "b", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed)
	allowed, _, _, err = limiter.Allow(context.Background(), "a", time.Minute, 1)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestSlidingWithoutClientAllows(t *testing.T) {
	allowed, remaining, _, err := Sliding{}.Allow(context.Background(), "k", time.Minute, 5)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 5, remaining)
}
