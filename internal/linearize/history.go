package linearize

import (
	"context"
	"sort"

	"github.com/ocx/agentbus/internal/bus"
	"github.com/ocx/agentbus/internal/payload"
)

// HistoryEntry is one committed counter operation, ordered by the
// position its Intention was proposed at (spec.md §4.10: "the resulting
// log-ordering as the sequence of decided operations").
type HistoryEntry struct {
	Position uint64
	Kind     OpKind
}

// BuildHistory scans the full bus and returns every counter-workload
// Intention that reached Commit, in Intention-position order. Aborted
// or still-undecided intentions are omitted, and non-counter intentions
// (unrelated bus traffic) are skipped.
func BuildHistory(ctx context.Context, log bus.Log, busID string) ([]HistoryEntry, error) {
	intentions := make(map[uint64]OpKind)
	committed := make(map[uint64]struct{})

	var start uint64
	for {
		result, err := log.Poll(ctx, busID, start, bus.MaxPollEntries, nil)
		if err != nil {
			return nil, err
		}
		for _, e := range result.Entries {
			switch e.Payload.Type {
			case payload.TypeIntention:
				if kind, ok := ParseOpKind(e.Payload.Intention.Body); ok {
					intentions[e.Header.LogPosition] = kind
				}
			case payload.TypeCommit:
				committed[e.Payload.Commit.IntentionID] = struct{}{}
			}
			start = e.Header.LogPosition + 1
		}
		if result.Complete {
			break
		}
	}

	positions := make([]uint64, 0, len(intentions))
	for p := range intentions {
		if _, ok := committed[p]; ok {
			positions = append(positions, p)
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })

	out := make([]HistoryEntry, len(positions))
	for i, p := range positions {
		out[i] = HistoryEntry{Position: p, Kind: intentions[p]}
	}
	return out, nil
}
