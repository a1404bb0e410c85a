// Package ratectl provides runtime-adjustable rate limiting, adapted
// from the teacher's channel-pipeline throttler/pauser stages for use
// as a standalone control handed to an InputDriver rather than a
// pipeline stage in its own right.
package ratectl

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttler wraps a rate.Limiter whose limit and burst can be changed
// while the pipeline is running, e.g. from an operator CLI command.
type Throttler struct {
	limiter *rate.Limiter
}

// NewThrottler builds a Throttler admitting at most ratePerSecond
// items per second, bursting up to burst at once.
func NewThrottler(ratePerSecond rate.Limit, burst int) *Throttler {
	return &Throttler{limiter: rate.NewLimiter(ratePerSecond, burst)}
}

// Wait blocks until the throttler admits one item or ctx is done.
func (t *Throttler) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// SetLimit changes the steady-state admission rate.
func (t *Throttler) SetLimit(limit rate.Limit) {
	t.limiter.SetLimit(limit)
}

// SetBurst changes the burst size.
func (t *Throttler) SetBurst(burst int) {
	t.limiter.SetBurst(burst)
}

// Pauser is a Throttler that starts paused (admitting nothing) and
// toggles between admitting everything and admitting nothing, rather
// than metering a steady rate.
type Pauser struct {
	*Throttler
}

// NewPauser builds a Pauser. It starts paused.
func NewPauser() *Pauser {
	return &Pauser{Throttler: NewThrottler(0, 1)}
}

// SetPaused toggles the pauser between blocking all items (paused)
// and admitting them immediately (unpaused).
func (p *Pauser) SetPaused(isPaused bool) {
	if isPaused {
		p.SetLimit(0)
	} else {
		p.SetLimit(rate.Inf)
	}
}
