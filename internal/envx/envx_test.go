package envx_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ocx/agentbus/internal/envx"
)

func TestProductionWithRNGIsUsable(t *testing.T) {
	p := envx.NewProduction()
	var got int
	p.WithRNG(func(r *rand.Rand) {
		got = r.Intn(100)
	})
	require.GreaterOrEqual(t, got, 0)
	require.Less(t, got, 100)
}

func TestProductionSleepRespectsContextCancellation(t *testing.T) {
	p := envx.NewProduction()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Sleep(ctx, time.Second)
	require.Error(t, err)
}

func TestProductionSleepReturnsAfterDuration(t *testing.T) {
	p := envx.NewProduction()
	start := time.Now()
	err := p.Sleep(context.Background(), 5*time.Millisecond)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestProductionNowAdvances(t *testing.T) {
	p := envx.NewProduction()
	a := p.Now()
	time.Sleep(time.Millisecond)
	b := p.Now()
	require.True(t, b.After(a) || b.Equal(a))
}
