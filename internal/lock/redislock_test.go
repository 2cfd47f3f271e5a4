package lock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grocery-pos/internal/lock"
)

func newRedisLocker(t *testing.T) (lock.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Redis{R: client, Prefix: "pos:lock:", RetryBackoff: 2 * time.Millisecond}, mr
}

func TestRedisWithLockOneHolderAtATime(t *testing.T) {
	locker, mr := newRedisLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var holders, peak, runs atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(ctx, "txn:1", time.Second, func(context.Context) error {
				n := holders.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				require.True(t, mr.Exists("pos:lock:txn:1"))
				time.Sleep(time.Millisecond)
				holders.Add(-1)
				runs.Add(1)
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(8), runs.Load())
	require.Equal(t, int32(1), peak.Load())
	require.False(t, mr.Exists("pos:lock:txn:1"))
}

func TestRedisWithLockGivesUpWhenContextEnds(t *testing.T) {
	locker, mr := newRedisLocker(t)
	require.NoError(t, mr.Set("pos:lock:txn:9", "another-till"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	called := false
	err := locker.WithLock(ctx, "txn:9", time.Second, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, called)
}

func TestRedisWithLockReleasesOnError(t *testing.T) {
	locker, mr := newRedisLocker(t)
	boom := context.Canceled
	err := locker.WithLock(context.Background(), "txn:2", time.Second, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("pos:lock:txn:2"))
}

func TestRedisWithLockLeavesForeignLease(t *testing.T) {
	locker, mr := newRedisLocker(t)
	err := locker.WithLock(context.Background(), "txn:5", time.Second, func(context.Context) error {
		// simulate the lease expiring and another replica taking it over
		return mr.Set("pos:lock:txn:5", "other-replica")
	})
	require.NoError(t, err)

	got, err := mr.Get("pos:lock:txn:5")
	require.NoError(t, err)
	require.Equal(t, "other-replica", got)
}

func TestRedisWithLockRequiresClient(t *testing.T) {
	err := lock.Redis{}.WithLock(context.Background(), "txn:1", time.Second, func(context.Context) error { return nil })
	require.Error(t, err)
}
