package faultinject_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ocx/agentbus/internal/bus/busmem"
	"github.com/ocx/agentbus/internal/faultinject"
	"github.com/ocx/agentbus/internal/payload"
)

// fixedEnv is a minimal envx.Environment whose RNG always yields a fixed
// sequence of Float64 draws, so drawFate's branch is deterministic
// without touching the real simulator.
type fixedEnv struct{}

// WithRNG hands back a real PRNG; tests below only use probability
// buckets of exactly 0 or 1, so the actual draw (anywhere in [0,1))
// never changes which branch fires.
func (f *fixedEnv) WithRNG(fn func(r *rand.Rand)) {
	fn(rand.New(rand.NewSource(0)))
}
func (f *fixedEnv) WithClock(fn func(now time.Time))                { fn(time.Unix(0, 0)) }
func (f *fixedEnv) Now() time.Time                                  { return time.Unix(0, 0) }
func (f *fixedEnv) Sleep(ctx context.Context, d time.Duration) error { return nil }

func TestSuccessPassesThrough(t *testing.T) {
	ctx := context.Background()
	inner := busmem.New()
	l := faultinject.New(inner, &fixedEnv{}, faultinject.Probabilities{})

	pos, err := l.Propose(ctx, "b", payload.NewIntention("x"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), pos)
}

func TestAllLostNeverForwards(t *testing.T) {
	ctx := context.Background()
	inner := busmem.New()
	l := faultinject.New(inner, &fixedEnv{}, faultinject.Probabilities{Lost: 1.0})

	_, err := l.Propose(ctx, "b", payload.NewIntention("x"))
	require.Error(t, err)

	res, err := inner.Poll(ctx, "b", 0, 10, nil)
	require.NoError(t, err)
	require.Empty(t, res.Entries)
}

func TestCommitThenErrorStillForwards(t *testing.T) {
	ctx := context.Background()
	inner := busmem.New()
	l := faultinject.New(inner, &fixedEnv{}, faultinject.Probabilities{CommitThenError: 1.0})

	_, err := l.Propose(ctx, "b", payload.NewIntention("x"))
	require.Error(t, err)

	res, err := inner.Poll(ctx, "b", 0, 10, nil)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
}

func TestErrorThenCommitLandsInBackground(t *testing.T) {
	ctx := context.Background()
	inner := busmem.New()
	l := faultinject.New(inner, &fixedEnv{}, faultinject.Probabilities{ErrorThenCommit: 1.0})

	_, err := l.Propose(ctx, "b", payload.NewIntention("x"))
	require.Error(t, err)

	require.NoError(t, l.WaitIdle(ctx))

	res, err := inner.Poll(ctx, "b", 0, 10, nil)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
}

func TestPollIsNeverPerturbed(t *testing.T) {
	ctx := context.Background()
	inner := busmem.New()
	_, err := inner.Propose(ctx, "b", payload.NewIntention("x"))
	require.NoError(t, err)

	l := faultinject.New(inner, &fixedEnv{}, faultinject.Probabilities{Lost: 1.0, CommitThenError: 1.0})
	res, err := l.Poll(ctx, "b", 0, 10, nil)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
}
