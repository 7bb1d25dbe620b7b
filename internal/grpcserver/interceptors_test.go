package grpcserver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ocx/agentbus/internal/grpcserver"
	"github.com/ocx/agentbus/pb"
)

func noopHandler(ctx context.Context, req interface{}) (interface{}, error) {
	return "ok", nil
}

func TestBusIDValidationInterceptorRejectsInvalidID(t *testing.T) {
	interceptor := grpcserver.BusIDValidationInterceptor()
	_, err := interceptor(context.Background(), &pb.ProposeRequest{AgentBusId: ""},
		&grpc.UnaryServerInfo{}, noopHandler)
	require.Error(t, err)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestBusIDValidationInterceptorPassesValidID(t *testing.T) {
	interceptor := grpcserver.BusIDValidationInterceptor()
	resp, err := interceptor(context.Background(), &pb.ProposeRequest{AgentBusId: "bus-1"},
		&grpc.UnaryServerInfo{}, noopHandler)
	require.NoError(t, err)
	require.Equal(t, "ok", resp)
}

func TestRateLimiterAllowsWithinBurst(t *testing.T) {
	rl := grpcserver.NewRateLimiter(grpcserver.RateLimitConfig{MaxCallsPerMinute: 10, BurstSize: 10})
	for i := 0; i < 10; i++ {
		require.True(t, rl.Allow("bus-1"))
	}
}

func TestRateLimiterRejectsOverBurst(t *testing.T) {
	rl := grpcserver.NewRateLimiter(grpcserver.RateLimitConfig{MaxCallsPerMinute: 2, BurstSize: 2})
	require.True(t, rl.Allow("bus-1"))
	require.True(t, rl.Allow("bus-1"))
	require.False(t, rl.Allow("bus-1"))
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := grpcserver.NewRateLimiter(grpcserver.RateLimitConfig{MaxCallsPerMinute: 1, BurstSize: 1})
	require.True(t, rl.Allow("bus-1"))
	require.True(t, rl.Allow("bus-2"))
}

func TestRateLimitInterceptorRejectsExhausted(t *testing.T) {
	rl := grpcserver.NewRateLimiter(grpcserver.RateLimitConfig{MaxCallsPerMinute: 1, BurstSize: 1})
	interceptor := grpcserver.RateLimitInterceptor(rl)

	_, err := interceptor(context.Background(), &pb.ProposeRequest{AgentBusId: "bus-1"},
		&grpc.UnaryServerInfo{}, noopHandler)
	require.NoError(t, err)

	_, err = interceptor(context.Background(), &pb.ProposeRequest{AgentBusId: "bus-1"},
		&grpc.UnaryServerInfo{}, noopHandler)
	require.Error(t, err)
	require.Equal(t, codes.ResourceExhausted, status.Code(err))
}
