package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Fixed is a fixed-window limiter on top of a ulule limiter store.
type Fixed struct {
	Store limiter.Store
}

// NewMemoryFixed keeps counters in process. Suitable for a single register
// host or tests.
func NewMemoryFixed(prefix string) Fixed {
	return Fixed{Store: memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          prefix,
		CleanUpInterval: time.Minute,
	})}
}

// NewRedisFixed shares counters between API replicas.
func NewRedisFixed(client *redis.Client, prefix string) (Fixed, error) {
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return Fixed{}, err
	}
	return Fixed{Store: store}, nil
}

// Allow counts one event for key in the current window.
func (f Fixed) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if f.Store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	lim := limiter.New(f.Store, limiter.Rate{Period: window, Limit: int64(max)})
	res, err := lim.Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}
