// Package envx is the Environment abstraction (spec.md §4.7): the seam
// through which components take time and randomness, so that production
// and the deterministic simulator (internal/sim) can run identical code
// paths. Not every package goes through it: internal/circuitbreaker, the
// grpcserver rate limiter and notify's event timestamps call time.Now
// directly.
package envx

import (
	"context"
	"math/rand"
	"time"
)

// Environment is the capability every component consumes uniformly.
type Environment interface {
	// WithRNG grants mutable access to a seeded PRNG for the duration of f.
	WithRNG(f func(r *rand.Rand))

	// WithClock grants read-only access to a monotonic clock for the
	// duration of f.
	WithClock(f func(now time.Time))

	// Now is a convenience wrapper around WithClock for the common case.
	Now() time.Time

	// Sleep cooperatively suspends the caller for d, or returns early if
	// ctx is cancelled.
	Sleep(ctx context.Context, d time.Duration) error
}

// Production is the real-clock, entropy-seeded-PRNG, real-timer variant
// (spec.md §4.7 "Production").
type Production struct {
	mu  chan struct{} // 1-buffered mutex, avoids importing sync for one field
	rng *rand.Rand
}

// NewProduction seeds the PRNG from the current time's nanosecond clock,
// matching the teacher's ad hoc time-seeded rand.Rand usage
// (internal/escrow/entropy_jitter.go).
func NewProduction() *Production {
	p := &Production{
		mu:  make(chan struct{}, 1),
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	p.mu <- struct{}{}
	return p
}

func (p *Production) WithRNG(f func(r *rand.Rand)) {
	<-p.mu
	defer func() { p.mu <- struct{}{} }()
	f(p.rng)
}

func (p *Production) WithClock(f func(now time.Time)) {
	f(time.Now())
}

func (p *Production) Now() time.Time {
	return time.Now()
}

func (p *Production) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
