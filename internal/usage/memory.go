package usage

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is the single-instance counterpart to RedisLimiter:
// day-bucketed counters held in process memory. Counts are lost on restart,
// which is acceptable for an advisory limit in dev/single-instance mode.
type MemoryLimiter struct {
	mu     sync.Mutex
	limits Limits
	day    string
	counts map[string]int
	now    func() time.Time
}

func NewMemoryLimiter(limits Limits) *MemoryLimiter {
	return &MemoryLimiter{
		limits: limits,
		counts: make(map[string]int),
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, deviceID string, op Op) (Decision, error) {
	limit := l.limits.limitFor(op)
	if limit <= 0 {
		return Decision{Allowed: true}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	day := dayBucket(l.now())
	if day != l.day {
		l.day = day
		l.counts = make(map[string]int)
	}

	key := string(op) + ":" + deviceID
	if l.counts[key] >= limit {
		return Decision{Allowed: false, Limit: limit, Remaining: 0}, nil
	}
	l.counts[key]++
	return Decision{Allowed: true, Limit: limit, Remaining: limit - l.counts[key]}, nil
}
