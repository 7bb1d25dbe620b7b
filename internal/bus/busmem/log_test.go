package busmem_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ocx/agentbus/internal/bus"
	"github.com/ocx/agentbus/internal/bus/busmem"
	"github.com/ocx/agentbus/internal/payload"
)

func TestProposeAssignsDensePositions(t *testing.T) {
	ctx := context.Background()
	l := busmem.New()

	for i := uint64(0); i < 4; i++ {
		pos, err := l.Propose(ctx, "b", payload.NewIntention("x"))
		require.NoError(t, err)
		require.Equal(t, i, pos)
	}
}

func TestPollSameSemanticsAsWoas(t *testing.T) {
	ctx := context.Background()
	l := busmem.New()

	_, err := l.Propose(ctx, "b", payload.NewIntention("a"))
	require.NoError(t, err)
	_, err = l.Propose(ctx, "b", payload.NewVote(0, true, nil))
	require.NoError(t, err)

	result, err := l.Poll(ctx, "b", 0, 10, bus.NewPollFilter(payload.TypeIntention))
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	require.Equal(t, payload.TypeIntention, result.Entries[0].Payload.Type)

	result, err = l.Poll(ctx, "b", 5, 10, nil)
	require.NoError(t, err)
	require.True(t, result.Complete)
	require.Empty(t, result.Entries)
}

func TestPollCap(t *testing.T) {
	ctx := context.Background()
	l := busmem.New()
	for i := 0; i < 70; i++ {
		_, err := l.Propose(ctx, "b", payload.NewIntention("x"))
		require.NoError(t, err)
	}
	result, err := l.Poll(ctx, "b", 0, 1000, nil)
	require.NoError(t, err)
	require.Len(t, result.Entries, bus.MaxPollEntries)
	require.False(t, result.Complete)
}
