package reconnect

import "time"

// backoff is the linear-capped retry interval policy spec.md §4.4
// describes: the interval starts at zero (the first reconnect attempt is
// immediate) and grows by a fixed increase after each failed attempt, never
// exceeding upTo.
//
// Adapted from (not imported as) omeyang-XKit/pkg/resilience/xretry's
// LinearBackoff cap/overflow-guard shape — that constructor requires a
// positive initialDelay, which doesn't fit spec.md's "attempt 1 is
// immediate" starting condition.
type backoff struct {
	increase time.Duration
	upTo     time.Duration
}

// newBackoff constructs a backoff policy. A non-positive upTo disables the
// cap (increase is still applied, but interval grows unbounded); spec.md
// assumes a positive cap is always configured in practice.
func newBackoff(increase, upTo time.Duration) backoff {
	return backoff{increase: increase, upTo: upTo}
}

// next returns the interval to use for the attempt following one that used
// cur, capped at upTo. Overflow (increase large enough to wrap a
// time.Duration) saturates at upTo rather than wrapping negative.
func (b backoff) next(cur time.Duration) time.Duration {
	if b.upTo > 0 && cur >= b.upTo {
		return b.upTo
	}
	next := cur + b.increase
	if next < cur {
		// overflow
		return b.upTo
	}
	if b.upTo > 0 && next > b.upTo {
		return b.upTo
	}
	return next
}
