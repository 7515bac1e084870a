package watcher

import (
	"context"
	"math"
	"math/rand"
	"time"
)

const (
	defaultBackoffMin    = time.Second
	defaultBackoffMax    = 30 * time.Second
	defaultBackoffFactor = 2.0
)

// Policy governs respawning the child after an unexpected exit. A clean,
// exit-command-initiated shutdown is never subject to it.
type Policy struct {
	// MaxRetries bounds consecutive respawns; negative means unbounded,
	// zero disables respawning.
	MaxRetries int
	Min        time.Duration
	Max        time.Duration
	Factor     float64
}

// DefaultPolicy returns the restart policy applied when the configuration
// does not provide one.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		Min:        defaultBackoffMin,
		Max:        defaultBackoffMax,
		Factor:     defaultBackoffFactor,
	}
}

// Normalize clamps the policy fields into a usable range.
func (p Policy) Normalize() Policy {
	if p.Min <= 0 {
		p.Min = defaultBackoffMin
	}
	if p.Max <= 0 {
		p.Max = defaultBackoffMax
	}
	if p.Max < p.Min {
		p.Max = p.Min
	}
	if p.Factor <= 1 {
		p.Factor = defaultBackoffFactor
	}
	return p
}

// Allow reports whether another respawn attempt is permitted after the
// given number of prior restarts.
func (p Policy) Allow(restarts int) bool {
	if p.MaxRetries < 0 {
		return true
	}
	return restarts < p.MaxRetries
}

// Next advances the backoff base for the following attempt.
func (p Policy) Next(base time.Duration) time.Duration {
	if base <= 0 {
		base = p.Min
	}
	next := float64(base) * p.Factor
	if math.IsInf(next, 0) || next > float64(p.Max) {
		return p.Max
	}
	n := time.Duration(next)
	if n < p.Min {
		n = p.Min
	}
	if n > p.Max {
		n = p.Max
	}
	return n
}

// Jitter returns a random duration in [0, d].
func Jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Float64() * float64(d))
}

// SleepBackoff waits for a jittered delay derived from base, honouring ctx
// cancellation.
func (p Policy) SleepBackoff(ctx context.Context, base time.Duration) error {
	delay := base
	if delay <= 0 {
		delay = p.Min
	}
	if delay > p.Max {
		delay = p.Max
	}
	jittered := Jitter(delay)
	if jittered > p.Max {
		jittered = p.Max
	}
	return sleepWithContext(ctx, jittered)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
