package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serialises work on a single resource key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Redis is a lease lock shared by every API replica, used so the same
// transaction is never voided or refunded twice concurrently. A lease
// outlives a crashed holder by at most its ttl.
type Redis struct {
	R            redis.UniversalClient
	Prefix       string
	RetryBackoff time.Duration
}

// unlock deletes the lease only while it still carries our token, so a lease
// that expired and was taken over is left alone.
var unlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

const defaultLeaseTTL = 30 * time.Second

func (l Redis) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	lease := l.Prefix + key
	token := uuid.NewString()
	if err := l.acquire(ctx, lease, token, ttl); err != nil {
		return err
	}
	defer func() {
		_ = unlock.Run(context.WithoutCancel(ctx), l.R, []string{lease}, token).Err()
	}()
	return fn(ctx)
}

// acquire polls SET NX until the lease is granted or ctx ends.
func (l Redis) acquire(ctx context.Context, lease, token string, ttl time.Duration) error {
	backoff := l.RetryBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	ticker := time.NewTicker(backoff)
	defer ticker.Stop()
	for {
		ok, err := l.R.SetNX(ctx, lease, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
