// Package ratelimit paces outbound requests to a single bibliographic source.
//
// One Limiter guards one source; limiters never throttle across sources, so
// concurrent calls against different services proceed independently.
package ratelimit

import (
	"context"
	"strings"
	"sync/atomic"
	"time"
)

// Cooldown pause classes, selected from the error feedback text.
const (
	QuotaCooldown   = 25 * time.Second
	RateCooldown    = 15 * time.Second
	TimeoutCooldown = 8 * time.Second
	DefaultCooldown = 10 * time.Second

	// MaxCooldown caps additive cooldown composition.
	MaxCooldown = 120 * time.Second
)

// Limiter is a lock-free single-source pacer. It maintains a monotonic
// next-allowed-time; Acquire reserves a slot with a compare-and-swap and
// sleeps until the reserved instant. Cooperative single-threaded callers
// observe FIFO ordering.
type Limiter struct {
	name     string
	interval int64 // nanoseconds between request starts

	// next is the unix-nano instant at which the next request may start.
	next atomic.Int64
}

// New creates a limiter for the named source.
//
// rps is the sustained requests-per-second budget; minDelay is the mandatory
// minimum inter-request delay. The effective spacing is whichever is larger.
// A non-positive rps falls back to one request per second.
func New(name string, rps float64, minDelay time.Duration) *Limiter {
	if rps <= 0 {
		rps = 1
	}
	interval := time.Duration(float64(time.Second) / rps)
	if minDelay > interval {
		interval = minDelay
	}
	return &Limiter{name: name, interval: int64(interval)}
}

// Name returns the source this limiter guards.
func (l *Limiter) Name() string { return l.name }

// Interval returns the effective spacing between request starts.
func (l *Limiter) Interval() time.Duration { return time.Duration(l.interval) }

// Acquire blocks until a request slot is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		now := time.Now().UnixNano()
		next := l.next.Load()
		start := next
		if start < now {
			start = now
		}
		if !l.next.CompareAndSwap(next, start+l.interval) {
			continue
		}
		wait := time.Duration(start - now)
		if wait <= 0 {
			return ctx.Err()
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}

// Cooldown inserts a pause before the next Acquire based on the error class
// found in reason. Cooldowns compose additively with already-pending pauses,
// capped at MaxCooldown past the current time.
func (l *Limiter) Cooldown(reason string) {
	pause := int64(Classify(reason))
	for {
		now := time.Now().UnixNano()
		next := l.next.Load()
		base := next
		if base < now {
			base = now
		}
		target := base + pause
		if maxNext := now + int64(MaxCooldown); target > maxNext {
			target = maxNext
		}
		if l.next.CompareAndSwap(next, target) {
			return
		}
	}
}

// Classify maps error feedback text to a cooldown pause length.
func Classify(reason string) time.Duration {
	r := strings.ToLower(reason)
	switch {
	case strings.Contains(r, "quota"):
		return QuotaCooldown
	case strings.Contains(r, "rate"):
		return RateCooldown
	case strings.Contains(r, "timeout"), strings.Contains(r, "deadline"):
		return TimeoutCooldown
	default:
		return DefaultCooldown
	}
}
