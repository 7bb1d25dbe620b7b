package sim

import (
	"context"

	"github.com/ocx/agentbus/internal/bus"
	"github.com/ocx/agentbus/internal/payload"
)

// Log wraps an inner bus.Log so that every propose/poll call yields the
// scheduler's turn first, forcing an interleaving opportunity at each of
// spec.md §5's two public suspension points even though the in-memory
// reference log itself never actually blocks.
type Log struct {
	inner bus.Log
	h     *Handle
}

// WrapLog builds a simulation-aware bus.Log over inner, suspending
// through h at every call.
func WrapLog(inner bus.Log, h *Handle) *Log {
	return &Log{inner: inner, h: h}
}

func (l *Log) Propose(ctx context.Context, busID string, p payload.Payload) (uint64, error) {
	l.h.Yield()
	return l.inner.Propose(ctx, busID, p)
}

func (l *Log) Poll(ctx context.Context, busID string, start uint64, max int, filter *bus.PollFilter) (bus.PollResult, error) {
	l.h.Yield()
	return l.inner.Poll(ctx, busID, start, max, filter)
}
