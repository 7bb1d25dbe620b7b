package bus_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ocx/agentbus/internal/bus"
	"github.com/ocx/agentbus/internal/payload"
	"github.com/ocx/agentbus/internal/woas/woasmem"
)

func TestValidateBusID(t *testing.T) {
	require.NoError(t, bus.ValidateBusID("a"))
	require.NoError(t, bus.ValidateBusID("agent.bus-1/dev_ops"))
	require.Error(t, bus.ValidateBusID(""))
	require.Error(t, bus.ValidateBusID("has spaces"))
	require.Error(t, bus.ValidateBusID("bad$char"))

	long := make([]byte, 257)
	for i := range long {
		long[i] = 'a'
	}
	require.Error(t, bus.ValidateBusID(string(long)))
}

func TestDensePositionsFromOneWriter(t *testing.T) {
	ctx := context.Background()
	b := bus.NewWriteOnceAgentBus(woasmem.New())

	for i := uint64(0); i < 5; i++ {
		pos, err := b.Propose(ctx, "bus-a", payload.NewIntention("x"))
		require.NoError(t, err)
		require.Equal(t, i, pos)
	}
}

func TestWriteOnceConflictRetries(t *testing.T) {
	ctx := context.Background()
	store := woasmem.New()
	a := bus.NewWriteOnceAgentBus(store)
	b := bus.NewWriteOnceAgentBus(store)

	posA, err := a.Propose(ctx, "shared", payload.NewIntention("a"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), posA)

	posB, err := b.Propose(ctx, "shared", payload.NewIntention("b"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), posB)

	result, err := a.Poll(ctx, "shared", 0, 10, nil)
	require.NoError(t, err)
	require.True(t, result.Complete)
	require.Len(t, result.Entries, 2)
	require.Equal(t, "a", result.Entries[0].Payload.Intention.Body)
	require.Equal(t, "b", result.Entries[1].Payload.Intention.Body)
}

func TestConvergentOrderAcrossWriters(t *testing.T) {
	ctx := context.Background()
	store := woasmem.New()

	const writers = 6
	const perWriter = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := bus.NewWriteOnceAgentBus(store)
			for j := 0; j < perWriter; j++ {
				_, err := h.Propose(ctx, "race", payload.NewIntention("x"))
				require.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	reader := bus.NewWriteOnceAgentBus(store)
	result, err := reader.Poll(ctx, "race", 0, writers*perWriter, nil)
	require.NoError(t, err)
	require.Len(t, result.Entries, writers*perWriter)
	for i, e := range result.Entries {
		require.Equal(t, uint64(i), e.Header.LogPosition)
	}
}

func TestPollBoundaries(t *testing.T) {
	ctx := context.Background()
	store := woasmem.New()
	b := bus.NewWriteOnceAgentBus(store)

	result, err := b.Poll(ctx, "empty", 0, 10, nil)
	require.NoError(t, err)
	require.Empty(t, result.Entries)
	require.True(t, result.Complete)

	for i := 0; i < 5; i++ {
		_, err := b.Propose(ctx, "bus-a", payload.NewIntention("x"))
		require.NoError(t, err)
	}

	result, err = b.Poll(ctx, "bus-a", 10, 10, nil)
	require.NoError(t, err)
	require.Empty(t, result.Entries)
	require.True(t, result.Complete)

	result, err = b.Poll(ctx, "bus-a", 0, 0, nil)
	require.NoError(t, err)
	require.Empty(t, result.Entries)
	require.True(t, result.Complete)

	result, err = b.Poll(ctx, "bus-a", 2, 10, nil)
	require.NoError(t, err)
	require.LessOrEqual(t, len(result.Entries), 3)
}

func TestPollCapAt64(t *testing.T) {
	ctx := context.Background()
	store := woasmem.New()
	b := bus.NewWriteOnceAgentBus(store)

	for i := 0; i < 100; i++ {
		_, err := b.Propose(ctx, "bus-a", payload.NewIntention("x"))
		require.NoError(t, err)
	}

	result, err := b.Poll(ctx, "bus-a", 0, 1000, nil)
	require.NoError(t, err)
	require.Len(t, result.Entries, bus.MaxPollEntries)
	require.False(t, result.Complete)
}

func TestFilterSoundnessAndEmptyFilter(t *testing.T) {
	ctx := context.Background()
	store := woasmem.New()
	b := bus.NewWriteOnceAgentBus(store)

	_, err := b.Propose(ctx, "bus-a", payload.NewIntention("x"))
	require.NoError(t, err)
	_, err = b.Propose(ctx, "bus-a", payload.NewVote(0, true, nil))
	require.NoError(t, err)

	result, err := b.Poll(ctx, "bus-a", 0, 10, bus.NewPollFilter(payload.TypeVote))
	require.NoError(t, err)
	for _, e := range result.Entries {
		require.Equal(t, payload.TypeVote, e.Payload.Type)
	}
	require.Len(t, result.Entries, 1)

	result, err = b.Poll(ctx, "bus-a", 0, 10, bus.NewPollFilter())
	require.NoError(t, err)
	require.Empty(t, result.Entries)
	require.True(t, result.Complete)
}

func TestDifferentBusesShareNoState(t *testing.T) {
	ctx := context.Background()
	store := woasmem.New()
	b := bus.NewWriteOnceAgentBus(store)

	_, err := b.Propose(ctx, "bus-a", payload.NewIntention("x"))
	require.NoError(t, err)

	result, err := b.Poll(ctx, "bus-b", 0, 10, nil)
	require.NoError(t, err)
	require.Empty(t, result.Entries)
	require.True(t, result.Complete)
}
