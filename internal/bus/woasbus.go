package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/ocx/agentbus/internal/payload"
	"github.com/ocx/agentbus/internal/woas"
)

// WriteOnceAgentBus is the log-over-WOAS implementation (spec.md §4.3):
// one woas.Store space per bus-id, positions claimed via retry-on-conflict
// writes, tail discovered by scanning forward from a cached estimate.
//
// next_position is cached per-bus on this handle (spec.md §4.3 step 1-2).
// Multiple handles sharing one woas.Store converge to the same total
// order because the store, not the cache, arbitrates who wins each cell
// (spec.md §5 "Ordering guarantees").
type WriteOnceAgentBus struct {
	store woas.Store

	mu   sync.Mutex
	next map[string]uint64 // bus id -> next position to try/scan from
}

func NewWriteOnceAgentBus(store woas.Store) *WriteOnceAgentBus {
	return &WriteOnceAgentBus{store: store, next: make(map[string]uint64)}
}

func (b *WriteOnceAgentBus) cachedNext(busID string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.next[busID]
}

func (b *WriteOnceAgentBus) setCachedNext(busID string, p uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p > b.next[busID] {
		b.next[busID] = p
	}
}

// Propose implements the append protocol (spec.md §4.3 "Append protocol").
func (b *WriteOnceAgentBus) Propose(ctx context.Context, busID string, p payload.Payload) (uint64, error) {
	if err := ValidateBusID(busID); err != nil {
		return 0, err
	}
	encoded := payload.Encode(p)

	pos := b.cachedNext(busID)
	for {
		err := b.store.Write(ctx, busID, pos, encoded)
		if err == nil {
			b.setCachedNext(busID, pos+1)
			return pos, nil
		}

		var conflict *woas.ErrAddressAlreadyExists
		if errors.As(err, &conflict) {
			pos++
			continue
		}

		var unavailable *woas.ErrBackendUnavailable
		if errors.As(err, &unavailable) {
			return 0, err
		}
		return 0, err
	}
}

// Poll implements spec.md §4.3 "Poll protocol": tail-discovery by
// scanning forward from the cached estimate, then a bounded walk from
// start applying filter.
func (b *WriteOnceAgentBus) Poll(ctx context.Context, busID string, start uint64, max int, filter *PollFilter) (PollResult, error) {
	if err := ValidateBusID(busID); err != nil {
		return PollResult{}, err
	}

	tail, err := b.discoverTail(ctx, busID)
	if err != nil {
		return PollResult{}, err
	}

	if max <= 0 || start >= tail {
		complete := start >= tail
		return PollResult{Entries: nil, Complete: complete}, nil
	}

	limit := max
	if limit > MaxPollEntries {
		limit = MaxPollEntries
	}

	entries := make([]payload.BusEntry, 0, limit)
	complete := true
	for p := start; p < tail; p++ {
		raw, ok, err := b.store.Read(ctx, busID, p)
		if err != nil {
			return PollResult{}, err
		}
		if !ok {
			// Lost race with tail discovery; treat as end of what we can see.
			complete = true
			break
		}
		decoded, ok := payload.Decode(raw)
		if !ok {
			continue // unknown/corrupt payload: skip silently (spec.md §4.2)
		}
		if !filter.Matches(decoded.Type) {
			continue
		}
		entries = append(entries, payload.BusEntry{
			Header:  payload.Header{LogPosition: p},
			Payload: decoded,
		})
		if len(entries) >= limit {
			complete = false
			break
		}
	}

	return PollResult{Entries: entries, Complete: complete}, nil
}

// discoverTail advances the cached estimate while cells are occupied,
// per spec.md §4.3 step 1. It is best-effort and not linearizable with
// concurrent writers (spec.md §9): a re-poll may reveal entries a
// concurrent proposer claimed mid-scan.
func (b *WriteOnceAgentBus) discoverTail(ctx context.Context, busID string) (uint64, error) {
	p := b.cachedNext(busID)
	for {
		_, ok, err := b.store.Read(ctx, busID, p)
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		p++
	}
	b.setCachedNext(busID, p)
	return p, nil
}
