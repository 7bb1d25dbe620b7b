package voter_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ocx/agentbus/internal/bus/busmem"
	"github.com/ocx/agentbus/internal/payload"
	"github.com/ocx/agentbus/internal/voter"
)

type stubEvaluator struct {
	response string
	err      error
	calls    []string
}

func (s *stubEvaluator) Chat(_ context.Context, model, prompt string) (string, error) {
	s.calls = append(s.calls, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func realSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func runUntil(t *testing.T, run func(ctx context.Context) error, log *busmem.Log, busID string, wantLen int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	require.Eventually(t, func() bool {
		res, err := log.Poll(context.Background(), busID, 0, 1000, nil)
		require.NoError(t, err)
		return len(res.Entries) >= wantLen
	}, 2*time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestVoterAppendsSafeVote(t *testing.T) {
	ctx := context.Background()
	log := busmem.New()
	const busID = "b"

	_, err := log.Propose(ctx, busID, payload.NewIntention("read a file"))
	require.NoError(t, err)

	eval := &stubEvaluator{response: "<safe>true</safe><reason>benign read</reason>"}
	v := voter.New(log, realSleep, busID, "gpt", eval)
	runUntil(t, func(ctx context.Context) error { return v.Run(ctx, time.Millisecond) }, log, busID, 2)

	res, err := log.Poll(ctx, busID, 0, 10, nil)
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	require.Equal(t, payload.TypeVote, res.Entries[1].Payload.Type)
	vote := res.Entries[1].Payload.Vote
	require.True(t, vote.VoteType)
	require.Equal(t, uint64(0), vote.IntentionID)
	require.Equal(t, "benign read", vote.Info.Reason)
}

func TestVoterFailsClosedOnMissingSafeTag(t *testing.T) {
	ctx := context.Background()
	log := busmem.New()
	const busID = "b"

	_, err := log.Propose(ctx, busID, payload.NewIntention("do something"))
	require.NoError(t, err)

	eval := &stubEvaluator{response: "not xml at all"}
	v := voter.New(log, realSleep, busID, "gpt", eval)
	runUntil(t, func(ctx context.Context) error { return v.Run(ctx, time.Millisecond) }, log, busID, 2)

	res, err := log.Poll(ctx, busID, 0, 10, nil)
	require.NoError(t, err)
	require.False(t, res.Entries[1].Payload.Vote.VoteType)
}

func TestVoterFailsClosedOnEvaluatorError(t *testing.T) {
	ctx := context.Background()
	log := busmem.New()
	const busID = "b"

	_, err := log.Propose(ctx, busID, payload.NewIntention("do something"))
	require.NoError(t, err)

	eval := &stubEvaluator{err: fmt.Errorf("connection refused")}
	v := voter.New(log, realSleep, busID, "gpt", eval)
	runUntil(t, func(ctx context.Context) error { return v.Run(ctx, time.Millisecond) }, log, busID, 2)

	res, err := log.Poll(ctx, busID, 0, 10, nil)
	require.NoError(t, err)
	vote := res.Entries[1].Payload.Vote
	require.False(t, vote.VoteType)
	require.Contains(t, vote.Info.Reason, "LLM call failed")
}

func TestVoterFoldsConcernsIntoReason(t *testing.T) {
	ctx := context.Background()
	log := busmem.New()
	const busID = "b"

	_, err := log.Propose(ctx, busID, payload.NewIntention("do something"))
	require.NoError(t, err)

	eval := &stubEvaluator{response: "<safe>true</safe><reason>ok</reason><concerns>rate limits</concerns>"}
	v := voter.New(log, realSleep, busID, "gpt", eval)
	runUntil(t, func(ctx context.Context) error { return v.Run(ctx, time.Millisecond) }, log, busID, 2)

	res, err := log.Poll(ctx, busID, 0, 10, nil)
	require.NoError(t, err)
	vote := res.Entries[1].Payload.Vote
	require.True(t, vote.VoteType)
	require.Equal(t, "ok. Concerns: rate limits", vote.Info.Reason)
}

func TestVoterIgnoresNoneConcerns(t *testing.T) {
	ctx := context.Background()
	log := busmem.New()
	const busID = "b"

	_, err := log.Propose(ctx, busID, payload.NewIntention("do something"))
	require.NoError(t, err)

	eval := &stubEvaluator{response: "<safe>true</safe><reason>ok</reason><concerns>none</concerns>"}
	v := voter.New(log, realSleep, busID, "gpt", eval)
	runUntil(t, func(ctx context.Context) error { return v.Run(ctx, time.Millisecond) }, log, busID, 2)

	res, err := log.Poll(ctx, busID, 0, 10, nil)
	require.NoError(t, err)
	vote := res.Entries[1].Payload.Vote
	require.Equal(t, "ok", vote.Info.Reason)
}

func TestVoterAppliesPromptOverride(t *testing.T) {
	ctx := context.Background()
	log := busmem.New()
	const busID = "b"

	_, err := log.Propose(ctx, busID, payload.NewVoterPolicy("custom prompt: "))
	require.NoError(t, err)
	_, err = log.Propose(ctx, busID, payload.NewIntention("x"))
	require.NoError(t, err)

	eval := &stubEvaluator{response: "<safe>true</safe><reason>ok</reason>"}
	v := voter.New(log, realSleep, busID, "gpt", eval)
	runUntil(t, func(ctx context.Context) error { return v.Run(ctx, time.Millisecond) }, log, busID, 3)

	require.Len(t, eval.calls, 1)
	require.Contains(t, eval.calls[0], "custom prompt: x")
	require.Contains(t, eval.calls[0], "OVERRIDE: custom prompt: ")
	require.Contains(t, eval.calls[0], "<safe>true</safe>", "the override must not strip the default response-format instructions")
}

// Entries outside the Voter's own poll filter ({Intention, VoterPolicy})
// are never even returned by the bus, so they cannot stall the loop
// regardless of how the Voter would classify them.
func TestVoterSkipsOverEntriesOutsideItsFilter(t *testing.T) {
	ctx := context.Background()
	log := busmem.New()
	const busID = "b"

	_, err := log.Propose(ctx, busID, payload.NewControlAgentInput("boundary"))
	require.NoError(t, err)
	_, err = log.Propose(ctx, busID, payload.NewIntention("after control"))
	require.NoError(t, err)

	eval := &stubEvaluator{response: "<safe>true</safe><reason>fine</reason>"}
	v := voter.New(log, realSleep, busID, "gpt", eval)
	runUntil(t, func(ctx context.Context) error { return v.Run(ctx, time.Millisecond) }, log, busID, 3)

	res, err := log.Poll(ctx, busID, 0, 10, nil)
	require.NoError(t, err)
	require.Len(t, res.Entries, 3)
	require.Equal(t, payload.TypeVote, res.Entries[2].Payload.Type)
}
