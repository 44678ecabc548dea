// Package usage enforces free-tier daily limits server-side, keyed by
// device ID. The client keeps its own localStorage counters purely as UI
// hinting; they are trivially resettable and are never trusted here.
package usage

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Op identifies a metered operation.
type Op string

const (
	OpGenerate Op = "generate"
	OpRefine   Op = "refine"
)

// Limits holds the per-day allowance for each operation. A zero limit
// disables enforcement for that operation.
type Limits struct {
	GenerationsPerDay int
	RefinementsPerDay int
}

func (l Limits) limitFor(op Op) int {
	switch op {
	case OpGenerate:
		return l.GenerationsPerDay
	case OpRefine:
		return l.RefinementsPerDay
	default:
		return 0
	}
}

// Decision is the outcome of a limiter check. The count is consumed at
// check time; a denied request does not consume.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
}

// Limiter decides whether a device may perform another metered operation
// today. Counters reset on UTC date rollover.
type Limiter interface {
	Allow(ctx context.Context, deviceID string, op Op) (Decision, error)
}

// AllowOrFailOpen wraps Allow for request paths: the limit is advisory, so
// a limiter backend failure lets the request through (logged) rather than
// blocking paying work behind a broken counter.
func AllowOrFailOpen(ctx context.Context, l Limiter, deviceID string, op Op) Decision {
	d, err := l.Allow(ctx, deviceID, op)
	if err != nil {
		log.Error().Err(err).Str("device_id", deviceID).Str("op", string(op)).
			Msg("usage limiter failed; allowing request")
		return Decision{Allowed: true, Limit: d.Limit, Remaining: d.Remaining}
	}
	return d
}

// dayBucket returns the UTC day key used to scope counters.
func dayBucket(now time.Time) string {
	return now.UTC().Format("20060102")
}
