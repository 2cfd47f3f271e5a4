package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Sliding counts requests over a rolling window using one Redis sorted set
// per key, scored by request time. Rejected requests are not recorded, so a
// client hammering a closed window does not extend its own ban.
type Sliding struct {
	Client redis.UniversalClient
	Prefix string
	Now    func() time.Time
}

func (s Sliding) Allow(ctx context.Context, key string, window time.Duration, limit int) (bool, int, time.Time, error) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	if s.Client == nil || limit <= 0 || window <= 0 {
		return true, limit, now.Add(window), nil
	}
	setKey := s.Prefix + key
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	pipe := s.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, setKey, "-inf", "("+cutoff)
	card := pipe.ZCard(ctx, setKey)
	oldest := pipe.ZRangeWithScores(ctx, setKey, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, now, err
	}

	used := int(card.Val())
	if used >= limit {
		reset := now.Add(window)
		if first := oldest.Val(); len(first) > 0 {
			reset = time.Unix(0, int64(first[0].Score)).Add(window)
		}
		return false, 0, reset, nil
	}

	pipe = s.Client.TxPipeline()
	pipe.ZAdd(ctx, setKey, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	pipe.PExpire(ctx, setKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, now, err
	}
	return true, limit - used - 1, now.Add(window), nil
}
