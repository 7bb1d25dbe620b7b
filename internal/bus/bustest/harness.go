// Package bustest exports a multi-writer convergence harness usable from
// any package's tests (not just internal/bus's own), so the linearize
// workload and the gRPC server's integration tests can reuse the same
// "many concurrent handles over one store converge to one order" check
// that internal/bus/bus_test.go runs against itself.
package bustest

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/require"

	"github.com/ocx/agentbus/internal/bus"
	"github.com/ocx/agentbus/internal/payload"
	"github.com/ocx/agentbus/internal/woas"
)

// VerifyMultiWriterConvergence drives `writers` concurrent
// WriteOnceAgentBus handles over one shared store, each proposing
// `perWriter` intentions tagged with its own writer index, then asserts
// the resulting log has dense positions 0..writers*perWriter-1 agreed
// upon by a fresh reading handle (spec.md §5 "Ordering guarantees").
func VerifyMultiWriterConvergence(t require.TestingT, store woas.Store, busID string, writers, perWriter int) {
	var wg sync.WaitGroup
	ctx := context.Background()

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			h := bus.NewWriteOnceAgentBus(store)
			for i := 0; i < perWriter; i++ {
				_, err := h.Propose(ctx, busID, payload.NewIntention(fmt.Sprintf("w%d-%d", w, i)))
				require.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	reader := bus.NewWriteOnceAgentBus(store)
	result, err := reader.Poll(ctx, busID, 0, writers*perWriter, nil)
	require.NoError(t, err)
	require.Len(t, result.Entries, writers*perWriter)

	for i, e := range result.Entries {
		require.Equal(t, uint64(i), e.Header.LogPosition)
	}
}
