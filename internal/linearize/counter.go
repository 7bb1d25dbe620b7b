// Package linearize implements the concurrent-counter workload and
// linearizability checker used to validate AgentBus's ordering
// guarantees under the deterministic simulator (spec.md §4.10).
//
// Grounded on the teacher's internal/ringbuf/reader.go: a
// bounded-capacity consumer pulling records off a stream and handing
// them to a gate. Stripped of its cilium/ebpf dependency (see
// DESIGN.md "Dropped teacher deps"), the same "bounded consumer of
// ordered records" shape becomes history's replay buffer here.
package linearize

import (
	"context"
	"fmt"
	"time"

	"github.com/ocx/agentbus/internal/bus"
	"github.com/ocx/agentbus/internal/envx"
	"github.com/ocx/agentbus/internal/payload"
)

// OpKind is one of the three operations the counter workload issues.
type OpKind int

const (
	Inc OpKind = iota
	Dec
	Noop
)

// IntentionBody is the Intention payload body this op is proposed as.
func (k OpKind) IntentionBody() string {
	switch k {
	case Inc:
		return "inc"
	case Dec:
		return "dec"
	default:
		return "noop"
	}
}

// ParseOpKind recovers an OpKind from an Intention body, reporting ok=false
// for bodies that aren't counter operations (e.g. unrelated intentions
// sharing the bus).
func ParseOpKind(body string) (OpKind, bool) {
	switch body {
	case "inc":
		return Inc, true
	case "dec":
		return Dec, true
	case "noop":
		return Noop, true
	default:
		return 0, false
	}
}

// apply folds one op onto a running counter value.
func (k OpKind) apply(v int) int {
	switch k {
	case Inc:
		return v + 1
	case Dec:
		return v - 1
	default:
		return v
	}
}

// Record is one worker's observation of a single operation: the
// wall-clock-like interval it was outstanding for (spec.md §4.10 "Real-time
// order"), and the counter value it observed after commit.
type Record struct {
	Worker    int
	Kind      OpKind
	Position  uint64 // the operation's own Intention log position
	Start     int64  // logical nanoseconds, from envx.Environment.Now()
	End       int64
	Result    int
	Committed bool
}

// Counter is one worker's handle onto the shared bus.
type Counter struct {
	log          bus.Log
	env          envx.Environment
	busID        string
	pollInterval time.Duration
}

func NewCounter(log bus.Log, env envx.Environment, busID string, pollInterval time.Duration) *Counter {
	return &Counter{log: log, env: env, busID: busID, pollInterval: pollInterval}
}

// Do proposes one operation, waits for its verdict, and computes the
// counter value that operation observed by replaying the committed
// history up to and including its own commit.
func (c *Counter) Do(ctx context.Context, worker int, kind OpKind) (Record, error) {
	start := c.env.Now().UnixNano()

	pos, err := c.log.Propose(ctx, c.busID, payload.NewIntention(kind.IntentionBody()))
	if err != nil {
		return Record{}, err
	}

	committed, err := c.awaitVerdict(ctx, pos)
	if err != nil {
		return Record{}, err
	}
	end := c.env.Now().UnixNano()

	if !committed {
		return Record{Worker: worker, Kind: kind, Position: pos, Start: start, End: end}, nil
	}

	history, err := BuildHistory(ctx, c.log, c.busID)
	if err != nil {
		return Record{}, err
	}

	value := 0
	found := false
	for _, h := range history {
		value = h.Kind.apply(value)
		if h.Position == pos {
			found = true
			break
		}
	}
	if !found {
		return Record{}, fmt.Errorf("linearize: commit observed for position %d but it is absent from the built history", pos)
	}

	return Record{Worker: worker, Kind: kind, Position: pos, Start: start, End: end, Result: value, Committed: true}, nil
}

// awaitVerdict polls until a Commit or Abort for pos appears, returning
// whether it committed.
func (c *Counter) awaitVerdict(ctx context.Context, pos uint64) (bool, error) {
	next := pos + 1
	filter := bus.NewPollFilter(payload.TypeCommit, payload.TypeAbort)
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		result, err := c.log.Poll(ctx, c.busID, next, bus.MaxPollEntries, filter)
		if err != nil {
			return false, err
		}
		for _, e := range result.Entries {
			switch e.Payload.Type {
			case payload.TypeCommit:
				if e.Payload.Commit.IntentionID == pos {
					return true, nil
				}
			case payload.TypeAbort:
				if e.Payload.Abort.IntentionID == pos {
					return false, nil
				}
			}
		}
		if len(result.Entries) > 0 {
			next = result.Entries[len(result.Entries)-1].Header.LogPosition + 1
		} else if result.Complete {
			if err := c.env.Sleep(ctx, c.pollInterval); err != nil {
				return false, err
			}
		}
	}
}
