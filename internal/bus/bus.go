// Package bus implements the log-over-WOAS abstraction (spec.md §4.3):
// WriteOnceAgentBus turns a woas.Store into a per-bus append-only,
// ordered log with retry-on-conflict appends and best-effort
// tail-discovery polls. Package busmem provides the in-memory reference
// log used both as a production single-owner backend and as the
// specification oracle for tests (spec.md §4.4).
package bus

import (
	"context"
	"fmt"
	"regexp"

	"github.com/ocx/agentbus/internal/payload"
)

// MaxPollEntries is the hard server-side cap on a single poll response
// (spec.md §4.3 "Server cap").
const MaxPollEntries = 64

var busIDPattern = regexp.MustCompile(`^[A-Za-z0-9._/\-]{1,256}$`)

// ErrInvalidBusID reports a bus_id outside spec.md §3's charset/length.
type ErrInvalidBusID struct {
	BusID string
}

func (e *ErrInvalidBusID) Error() string {
	return fmt.Sprintf("bus: invalid bus id %q", e.BusID)
}

// ValidateBusID enforces spec.md §3: 1..=256 bytes over
// [A-Za-z0-9._/\-_].
func ValidateBusID(busID string) error {
	if !busIDPattern.MatchString(busID) {
		return &ErrInvalidBusID{BusID: busID}
	}
	return nil
}

// PollFilter selects which payload.Type tags a Poll call returns. A nil
// filter matches everything; an empty, non-nil filter matches nothing
// (spec.md §4.3 "Filter semantics").
type PollFilter struct {
	set map[payload.Type]struct{}
}

// NewPollFilter builds a filter matching exactly the given types. Calling
// with zero types yields the "match nothing" filter (spec.md: filter =
// Some(∅)), distinct from a nil *PollFilter ("match everything").
func NewPollFilter(types ...payload.Type) *PollFilter {
	set := make(map[payload.Type]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return &PollFilter{set: set}
}

// Matches reports whether t passes this filter. A nil filter matches
// everything; a filter built with no types matches nothing.
func (f *PollFilter) Matches(t payload.Type) bool {
	if f == nil {
		return true
	}
	_, ok := f.set[t]
	return ok
}

// PollResult is the response to a Poll call (spec.md §4.3).
type PollResult struct {
	Entries  []payload.BusEntry
	Complete bool
}

// Log is the operation set every AgentBus producer/consumer (Decider,
// Voter, gRPC handlers, CLI, simulator workloads) programs against.
// WriteOnceAgentBus and busmem.Log both satisfy it.
type Log interface {
	// Propose appends payload to busID, returning the position it claimed.
	Propose(ctx context.Context, busID string, p payload.Payload) (uint64, error)

	// Poll returns entries in [start, tail) matching filter, capped at
	// min(max, MaxPollEntries).
	Poll(ctx context.Context, busID string, start uint64, max int, filter *PollFilter) (PollResult, error)
}
