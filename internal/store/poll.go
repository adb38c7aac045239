package store

import (
	"context"
	"slices"
	"time"

	"github.com/five82/giftlist/internal/gift"
)

const (
	defaultPollInterval = 2 * time.Second
	maxBackoff          = 30 * time.Second
)

// Backoff doubles base once per consecutive failure, capped at 30s.
func Backoff(failures int, base time.Duration) time.Duration {
	if base <= 0 {
		base = defaultPollInterval
	}
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// Poll emulates a live query for stores without change notifications. It
// calls fetch at a fixed cadence and emits a snapshot whenever the result
// differs from the last delivered one. Failures are emitted too, and the
// cadence backs off until fetch succeeds again. Poll returns when ctx ends.
func Poll(ctx context.Context, interval time.Duration, fetch func(context.Context) ([]gift.Gift, error), emit Emitter) {
	if interval <= 0 {
		interval = defaultPollInterval
	}

	var last []gift.Gift
	delivered := false
	failures := 0

	for {
		wait := interval
		gifts, err := fetch(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			failures++
			delivered = false
			emit(Snapshot{Err: err})
			wait = Backoff(failures, interval)
		default:
			failures = 0
			if !delivered || !slices.Equal(last, gifts) {
				emit(Snapshot{Gifts: gifts})
				last = gifts
				delivered = true
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
