// Package faultinject wraps a bus.Log and randomly perturbs propose
// outcomes (spec.md §4.9), for exercising the Decider/Voter/simulator
// against the same kinds of partial failures a real WOAS backend can
// produce: lost writes, writes that land but whose success response is
// lost, and writes that land only after the caller has already been
// told they failed.
//
// Grounded on the teacher's internal/escrow/entropy_jitter.go
// TemporalJitterInjector: an RNG-driven perturbation wrapper around an
// otherwise normal call path, re-pointed from timing jitter onto outcome
// selection.
package faultinject

import (
	"context"
	"math/rand"
	"sync"

	"github.com/ocx/agentbus/internal/bus"
	"github.com/ocx/agentbus/internal/envx"
	"github.com/ocx/agentbus/internal/payload"
)

// Fate is the outcome drawn for one propose call (spec.md §4.9).
type Fate int

const (
	Success Fate = iota
	Lost
	CommitThenError
	ErrorThenCommit
)

// Probabilities configures the draw. The fields must sum to <= 1; the
// remainder is Success.
type Probabilities struct {
	Lost            float64
	CommitThenError float64
	ErrorThenCommit float64
}

// ErrInjectedFailure is returned for Lost, CommitThenError, and
// ErrorThenCommit outcomes.
type ErrInjectedFailure struct {
	Fate Fate
}

func (e *ErrInjectedFailure) Error() string {
	switch e.Fate {
	case Lost:
		return "faultinject: propose lost"
	case CommitThenError:
		return "faultinject: propose committed but reported as error"
	case ErrorThenCommit:
		return "faultinject: propose reported as error before background commit"
	default:
		return "faultinject: injected failure"
	}
}

// Log wraps an inner bus.Log, drawing a Fate for every Propose call via
// env's RNG so that fault injection participates in the simulator's
// determinism (spec.md §4.8).
type Log struct {
	inner bus.Log
	env   envx.Environment
	probs Probabilities

	mu      sync.Mutex
	pending sync.WaitGroup // tracks in-flight ErrorThenCommit background proposes
}

func New(inner bus.Log, env envx.Environment, probs Probabilities) *Log {
	return &Log{inner: inner, env: env, probs: probs}
}

func (l *Log) drawFate() Fate {
	var r float64
	l.env.WithRNG(func(rng *rand.Rand) { r = rng.Float64() })

	switch {
	case r < l.probs.Lost:
		return Lost
	case r < l.probs.Lost+l.probs.CommitThenError:
		return CommitThenError
	case r < l.probs.Lost+l.probs.CommitThenError+l.probs.ErrorThenCommit:
		return ErrorThenCommit
	default:
		return Success
	}
}

// Propose implements the mapping in spec.md §4.9.
func (l *Log) Propose(ctx context.Context, busID string, p payload.Payload) (uint64, error) {
	switch l.drawFate() {
	case Success:
		return l.inner.Propose(ctx, busID, p)

	case Lost:
		return 0, &ErrInjectedFailure{Fate: Lost}

	case CommitThenError:
		if _, err := l.inner.Propose(ctx, busID, p); err != nil {
			return 0, err
		}
		return 0, &ErrInjectedFailure{Fate: CommitThenError}

	case ErrorThenCommit:
		l.mu.Lock()
		l.pending.Add(1)
		l.mu.Unlock()
		go func() {
			defer l.pending.Done()
			_, _ = l.inner.Propose(context.Background(), busID, p)
		}()
		return 0, &ErrInjectedFailure{Fate: ErrorThenCommit}

	default:
		return l.inner.Propose(ctx, busID, p)
	}
}

// Poll is forwarded unchanged (spec.md §4.9: "poll is forwarded unchanged").
func (l *Log) Poll(ctx context.Context, busID string, start uint64, max int, filter *bus.PollFilter) (bus.PollResult, error) {
	return l.inner.Poll(ctx, busID, start, max, filter)
}

// WaitIdle blocks until every background ErrorThenCommit propose started
// so far has landed, or ctx is cancelled. This is a test-only capability
// for observing the otherwise-invisible background completion: without
// it, a test proposing then immediately polling can race a commit that
// hasn't landed yet.
func (l *Log) WaitIdle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
