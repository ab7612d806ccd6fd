package chrono

import (
	"context"
	"math/rand/v2"
	"time"
)

// DelayAPI paces requests against the portal. Implementations must return
// early with ctx.Err() once ctx is done.
//
// note: fault injection point
type DelayAPI interface {
	Delay(ctx context.Context) error
}

// RandomDelay sleeps for a duration drawn uniformly from [Min, Max).
type RandomDelay struct {
	Min time.Duration
	Max time.Duration
}

func NewRandomDelay(min, max time.Duration) RandomDelay {
	if max < min {
		min, max = max, min
	}
	return RandomDelay{Min: min, Max: max}
}

func (d RandomDelay) next() time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + rand.N(d.Max-d.Min)
}

func (d RandomDelay) Delay(ctx context.Context) error {
	wait := d.next()
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NoDelay never sleeps, it only reports cancellation.
type NoDelay struct{}

func (NoDelay) Delay(ctx context.Context) error {
	return ctx.Err()
}
