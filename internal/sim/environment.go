package sim

import (
	"context"
	"math/rand"
	"time"
)

// Environment adapts a task's Handle to envx.Environment, so Decider and
// Voter loops spawned inside a Simulator run unmodified against the
// simulation variant of spec.md §4.7.
type Environment struct {
	h *Handle
}

// NewEnvironment wraps h for use wherever an envx.Environment is wanted.
func NewEnvironment(h *Handle) *Environment {
	return &Environment{h: h}
}

func (e *Environment) WithRNG(f func(r *rand.Rand)) { e.h.WithRNG(f) }

func (e *Environment) WithClock(f func(now time.Time)) { f(e.h.Now()) }

func (e *Environment) Now() time.Time { return e.h.Now() }

// Sleep ignores ctx cancellation: the simulator's tasks are cooperative
// and driven entirely by Simulator.Run, which has no notion of a
// real-time deadline to race against.
func (e *Environment) Sleep(_ context.Context, d time.Duration) error {
	e.h.Sleep(d)
	return nil
}
