// Package busmem is the in-memory reference log (spec.md §4.4): a
// per-bus vector of entries, position = len at append time. It serves
// both as a lightweight production backend for tests and as the
// specification oracle that WriteOnceAgentBus's behavior is checked
// against. No retry-on-conflict is needed: a single owner assigns
// positions directly.
package busmem

import (
	"context"
	"sync"

	"github.com/ocx/agentbus/internal/bus"
	"github.com/ocx/agentbus/internal/payload"
)

// Log is the single-owner, vector-backed reference implementation of
// bus.Log.
type Log struct {
	mu   sync.Mutex
	logs map[string][]payload.Payload
}

func New() *Log {
	return &Log{logs: make(map[string][]payload.Payload)}
}

func (l *Log) Propose(_ context.Context, busID string, p payload.Payload) (uint64, error) {
	if err := bus.ValidateBusID(busID); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	pos := uint64(len(l.logs[busID]))
	l.logs[busID] = append(l.logs[busID], p)
	return pos, nil
}

func (l *Log) Poll(_ context.Context, busID string, start uint64, max int, filter *bus.PollFilter) (bus.PollResult, error) {
	if err := bus.ValidateBusID(busID); err != nil {
		return bus.PollResult{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.logs[busID]
	tail := uint64(len(entries))

	if max <= 0 || start >= tail {
		return bus.PollResult{Complete: start >= tail}, nil
	}

	limit := max
	if limit > bus.MaxPollEntries {
		limit = bus.MaxPollEntries
	}

	out := make([]payload.BusEntry, 0, limit)
	complete := true
	for p := start; p < tail; p++ {
		pl := entries[p]
		if !filter.Matches(pl.Type) {
			continue
		}
		out = append(out, payload.BusEntry{Header: payload.Header{LogPosition: p}, Payload: pl})
		if len(out) >= limit {
			complete = false
			break
		}
	}
	return bus.PollResult{Entries: out, Complete: complete}, nil
}
