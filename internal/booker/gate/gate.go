// Package gate implements the bounded-retry predicate check that confirms UI
// state transitions. It is the only sanctioned substitute for fixed sleeps:
// everything else waits on visibility, hidden-ness or network idle through
// the page executor.
package gate

import (
	"context"
	"log/slog"
	"time"
)

// Predicate reports whether the awaited condition holds. Errors are treated
// as "not yet" and logged at debug level.
type Predicate func(ctx context.Context) (bool, error)

// Gate evaluates a predicate up to Attempts times, Interval apart. The first
// evaluation happens immediately.
type Gate struct {
	Attempts int
	Interval time.Duration
}

// Default matches the workflow design: two evaluations one second apart.
func Default() Gate {
	return Gate{Attempts: 2, Interval: time.Second}
}

// Await returns true on the first passing evaluation, false once attempts
// are exhausted or the context ends.
func (g Gate) Await(ctx context.Context, name string, pred Predicate) bool {
	attempts := g.Attempts
	if attempts < 1 {
		attempts = 1
	}
	interval := g.Interval
	if interval <= 0 {
		interval = time.Second
	}

	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				slog.Debug("Gate cancelled", "gate", name, "attempt", i+1)
				return false
			case <-time.After(interval):
			}
		}
		ok, err := pred(ctx)
		if err != nil {
			slog.Debug("Gate predicate error", "gate", name, "attempt", i+1, "error", err)
			continue
		}
		if ok {
			return true
		}
	}
	slog.Debug("Gate exhausted", "gate", name, "attempts", attempts)
	return false
}
