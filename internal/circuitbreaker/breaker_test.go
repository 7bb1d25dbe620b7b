package circuitbreaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ocx/agentbus/internal/circuitbreaker"
)

func tripAfterThree() *circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig("test")
	cfg.MaxRequests = 1
	cfg.Timeout = 10 * time.Millisecond
	cfg.ReadyToTrip = func(c circuitbreaker.Counts) bool { return c.ConsecutiveFailures >= 3 }
	return cfg
}

func TestBreakerStartsClosed(t *testing.T) {
	cb := circuitbreaker.New(tripAfterThree())
	require.Equal(t, circuitbreaker.StateClosed, cb.State())
	require.NoError(t, cb.Allow())
}

func TestBreakerTripsOpenAfterConsecutiveFailures(t *testing.T) {
	cb := circuitbreaker.New(tripAfterThree())
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(func() (any, error) { return nil, boom })
		require.ErrorIs(t, err, boom)
	}

	require.Equal(t, circuitbreaker.StateOpen, cb.State())
	_, err := cb.Execute(func() (any, error) { return "unreached", nil })
	require.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
}

func TestBreakerHalfOpensAfterTimeoutThenCloses(t *testing.T) {
	cb := circuitbreaker.New(tripAfterThree())
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, boom })
	}
	require.Equal(t, circuitbreaker.StateOpen, cb.State())

	time.Sleep(15 * time.Millisecond)
	require.Equal(t, circuitbreaker.StateHalfOpen, cb.State())

	result, err := cb.Execute(func() (any, error) { return "ok", nil })
	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, circuitbreaker.StateClosed, cb.State())
}

func TestBreakerExecuteContextPropagatesContext(t *testing.T) {
	cb := circuitbreaker.New(tripAfterThree())
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "value")

	result, err := cb.ExecuteContext(ctx, func(ctx context.Context) (any, error) {
		return ctx.Value(key{}), nil
	})
	require.NoError(t, err)
	require.Equal(t, "value", result)
}

func TestManagerGetReusesBreakerAcrossCalls(t *testing.T) {
	m := circuitbreaker.NewManager(circuitbreaker.DefaultConfig(""))
	a := m.Get("svc")
	b := m.Get("svc")
	require.Same(t, a, b)
	require.Equal(t, []string{"svc"}, m.List())
}

func TestExecuteWithFallbackRunsFallbackOnOpenCircuit(t *testing.T) {
	cb := circuitbreaker.New(tripAfterThree())
	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, boom })
	}

	result, err := circuitbreaker.ExecuteWithFallback(cb,
		func() (string, error) { return "primary", nil },
		func(err error) (string, error) { return "fallback", nil },
	)
	require.NoError(t, err)
	require.Equal(t, "fallback", result)
}
