package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// counterTTL keeps yesterday's bucket around briefly for debugging, then
// lets the cache expire it.
const counterTTL = 48 * time.Hour

// RedisLimiter counts operations in per-day keys
// (usage:<op>:<deviceID>:<yyyymmdd>) via INCR, setting a TTL on first
// increment. INCR is atomic at the cache level, so concurrent requests for
// one device never under-count.
type RedisLimiter struct {
	client *redis.Client
	limits Limits
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, limits Limits) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limits: limits,
		now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, deviceID string, op Op) (Decision, error) {
	limit := l.limits.limitFor(op)
	if limit <= 0 {
		return Decision{Allowed: true}, nil
	}

	key := fmt.Sprintf("usage:%s:%s:%s", op, deviceID, dayBucket(l.now()))
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{Limit: limit}, fmt.Errorf("increment usage counter: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, counterTTL).Err(); err != nil {
			return Decision{Limit: limit}, fmt.Errorf("set usage counter ttl: %w", err)
		}
	}

	if count > int64(limit) {
		// Denied requests do not consume allowance.
		if err := l.client.Decr(ctx, key).Err(); err != nil {
			return Decision{Limit: limit}, fmt.Errorf("rollback usage counter: %w", err)
		}
		return Decision{Allowed: false, Limit: limit, Remaining: 0}, nil
	}
	return Decision{Allowed: true, Limit: limit, Remaining: limit - int(count)}, nil
}
