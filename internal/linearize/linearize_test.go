package linearize_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ocx/agentbus/internal/bus/busmem"
	"github.com/ocx/agentbus/internal/decider"
	"github.com/ocx/agentbus/internal/envx"
	"github.com/ocx/agentbus/internal/linearize"
	"github.com/ocx/agentbus/internal/payload"
)

func startOnByDefaultDecider(t *testing.T, log *busmem.Log, busID string) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	d := decider.New(log, envx.NewProduction(), busID, decider.WithInitialPolicy(payload.OnByDefault))
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, 1) }()
	return func() {
		cancel()
		<-done
	}
}

func TestSequentialCounterReplayAgreesAndIsLinearizable(t *testing.T) {
	ctx := context.Background()
	log := busmem.New()
	const busID = "b"

	stop := startOnByDefaultDecider(t, log, busID)
	defer stop()

	env := envx.NewProduction()
	c := linearize.NewCounter(log, env, busID, time.Millisecond)

	var records []linearize.Record
	kinds := []linearize.OpKind{linearize.Inc, linearize.Inc, linearize.Dec, linearize.Inc}
	for _, k := range kinds {
		r, err := c.Do(ctx, 0, k)
		require.NoError(t, err)
		records = append(records, r)
	}

	history, err := linearize.BuildHistory(ctx, log, busID)
	require.NoError(t, err)
	require.Len(t, history, len(kinds))

	require.Nil(t, linearize.CheckReplayAgreement(history, records))
	require.Nil(t, linearize.CheckRealTimeOrder(history, records))

	replayed := linearize.Replay(history)
	require.Equal(t, []int{1, 2, 1, 2}, replayed)
}

func TestConcurrentWorkersObserveConsistentHistory(t *testing.T) {
	ctx := context.Background()
	log := busmem.New()
	const busID = "b"

	stop := startOnByDefaultDecider(t, log, busID)
	defer stop()

	env := envx.NewProduction()
	const workers = 4
	const opsPerWorker = 5

	var mu sync.Mutex
	var records []linearize.Record
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			c := linearize.NewCounter(log, env, busID, time.Millisecond)
			for i := 0; i < opsPerWorker; i++ {
				r, err := c.Do(ctx, w, linearize.Inc)
				require.NoError(t, err)
				mu.Lock()
				records = append(records, r)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	history, err := linearize.BuildHistory(ctx, log, busID)
	require.NoError(t, err)
	require.Len(t, history, workers*opsPerWorker)

	require.Nil(t, linearize.CheckReplayAgreement(history, records))

	final := linearize.Replay(history)
	require.Equal(t, workers*opsPerWorker, final[len(final)-1])
}

func TestReplayAgreementCatchesFabricatedResult(t *testing.T) {
	history := []linearize.HistoryEntry{
		{Position: 1, Kind: linearize.Inc},
		{Position: 2, Kind: linearize.Inc},
	}
	records := []linearize.Record{
		{Worker: 0, Kind: linearize.Inc, Position: 1, Result: 1, Committed: true},
		{Worker: 0, Kind: linearize.Inc, Position: 2, Result: 99, Committed: true},
	}
	v := linearize.CheckReplayAgreement(history, records)
	require.NotNil(t, v)
}
