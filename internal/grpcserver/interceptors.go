package grpcserver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ocx/agentbus/internal/bus"
)

// busIDRequest is satisfied by both pb.ProposeRequest and
// pb.PollRequest, letting one interceptor validate either.
type busIDRequest interface {
	GetAgentBusId() string
}

// BusIDValidationInterceptor rejects any Propose/Poll call whose
// agent_bus_id fails spec.md §3's charset/length rule before it
// reaches the handler, adapted from the teacher's TenantMiddleware
// (header-derived tenant gate) into a gRPC unary interceptor gating on
// the request's own bus id field instead of a header.
func BusIDValidationInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if busReq, ok := req.(busIDRequest); ok {
			if err := bus.ValidateBusID(busReq.GetAgentBusId()); err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}
		}
		return handler(ctx, req)
	}
}

// RateLimiter enforces a per-bus-id call cap over fixed one-minute
// windows (at most BurstSize calls per window), adapted
// from the teacher's internal/middleware/rate_limiter.go: same
// read-first/write-on-miss locking shape, keyed by bus id instead of
// "tenant:agent".
type RateLimiter struct {
	mu       sync.RWMutex
	windows  map[string]*rateLimitWindow
	defaults RateLimitConfig
	logger   *slog.Logger
}

type RateLimitConfig struct {
	MaxCallsPerMinute int
	BurstSize         int
}

type rateLimitWindow struct {
	count       int
	windowStart time.Time
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.MaxCallsPerMinute == 0 {
		cfg.MaxCallsPerMinute = 600
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = cfg.MaxCallsPerMinute * 2
	}
	return &RateLimiter{
		windows:  make(map[string]*rateLimitWindow),
		defaults: cfg,
		logger:   slog.Default(),
	}
}

// Allow reports whether a call keyed by key is within BurstSize calls
// of the current fixed window, which starts at the key's first call
// after the previous window ended and lasts one minute.
// MaxCallsPerMinute only supplies BurstSize's default.
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()

	rl.mu.RLock()
	window, exists := rl.windows[key]
	if exists && now.Sub(window.windowStart) <= time.Minute {
		window.count++
		count := window.count
		rl.mu.RUnlock()
		return count <= rl.defaults.BurstSize
	}
	rl.mu.RUnlock()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	window, exists = rl.windows[key]
	if exists && now.Sub(window.windowStart) <= time.Minute {
		window.count++
		return window.count <= rl.defaults.BurstSize
	}

	rl.windows[key] = &rateLimitWindow{count: 1, windowStart: now}
	return true
}

// CleanupExpired removes windows idle for more than two minutes; call
// periodically from a background goroutine to bound memory use.
func (rl *RateLimiter) CleanupExpired() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, window := range rl.windows {
		if now.Sub(window.windowStart) > 2*time.Minute {
			delete(rl.windows, key)
		}
	}
}

// RateLimitInterceptor rejects calls exceeding the limiter's
// per-bus-id window with codes.ResourceExhausted.
func RateLimitInterceptor(rl *RateLimiter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		key := "unknown"
		if busReq, ok := req.(busIDRequest); ok && busReq.GetAgentBusId() != "" {
			key = busReq.GetAgentBusId()
		}
		if !rl.Allow(key) {
			rl.logger.Warn("grpcserver: rate limit exceeded", "bus_id", key)
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}
