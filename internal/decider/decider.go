// Package decider implements the Decider state machine (spec.md §4.5): a
// long-running stream consumer that folds intentions and votes into a
// per-intention VoteRecord under a pluggable policy, and appends exactly
// one Commit or Abort verdict per intention.
//
// Structurally this mirrors the teacher's escrow gate
// (internal/escrow/gate.go's EscrowGate): a mutex-guarded map from item
// key to held state, fed by asynchronous signals, releasing a verdict
// once enough signals land. The Decider collapses that into a single
// goroutine driven by bus polls instead of three concurrent HTTP/async
// checks, because spec.md's VoteRecord is synchronous and
// single-threaded by design (scheduling model, spec.md §6).
package decider

import (
	"context"
	"log/slog"
	"time"

	"github.com/ocx/agentbus/internal/agentbuserr"
	"github.com/ocx/agentbus/internal/bus"
	"github.com/ocx/agentbus/internal/envx"
	"github.com/ocx/agentbus/internal/payload"
)

// Notifier fans out verdicts to an external sink (adapted from the
// teacher's internal/events package into internal/notify). Passing nil
// disables fan-out entirely.
type Notifier interface {
	NotifyVerdict(ctx context.Context, busID string, intentionID uint64, commit bool, reason string)
}

// intentionState is the per-intention record held by the Decider, keyed
// by the intention's own log position (spec.md §4.5 "State").
type intentionState struct {
	record       VoteRecord
	decisionMade bool
}

// Decider is the stateful verdict-emitting loop over one bus.
type Decider struct {
	busID string
	log   bus.Log
	env   envx.Environment
	pollInterval int64 // milliseconds; kept as a plain field, see Sleep below

	notifier Notifier
	logger   *slog.Logger

	nextLogPosition uint64
	currentPolicy   payload.DeciderPolicyKind
	intentions      map[uint64]*intentionState
}

// Option configures a Decider at construction time.
type Option func(*Decider)

func WithNotifier(n Notifier) Option {
	return func(d *Decider) { d.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Decider) { d.logger = l }
}

func WithStartPosition(p uint64) Option {
	return func(d *Decider) { d.nextLogPosition = p }
}

func WithInitialPolicy(p payload.DeciderPolicyKind) Option {
	return func(d *Decider) { d.currentPolicy = p }
}

// New constructs a Decider polling busID over log, defaulting to the
// OffByDefault policy and position 0 (spec.md §8 scenario 2/3 override
// both via a DeciderPolicy entry before proposing intentions).
func New(log bus.Log, env envx.Environment, busID string, opts ...Option) *Decider {
	d := &Decider{
		busID:         busID,
		log:           log,
		env:           env,
		currentPolicy: payload.OffByDefault,
		intentions:    make(map[uint64]*intentionState),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var deciderPollFilter = bus.NewPollFilter(
	payload.TypeIntention,
	payload.TypeVote,
	payload.TypeDeciderPolicy,
	payload.TypeVoterPolicy,
	payload.TypeCommit,
	payload.TypeAbort,
)

// Run drives the main loop until ctx is cancelled or a fatal error is
// encountered (spec.md §4.5 "Failure semantics": FailedAgentBusCall and
// UnknownPayloadType both end the loop).
func (d *Decider) Run(ctx context.Context, pollInterval int64) error {
	d.pollInterval = pollInterval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := d.log.Poll(ctx, d.busID, d.nextLogPosition, bus.MaxPollEntries, deciderPollFilter)
		if err != nil {
			return &agentbuserr.FailedAgentBusCall{Op: "poll", Err: err}
		}

		if len(result.Entries) == 0 {
			if err := d.env.Sleep(ctx, time.Duration(d.pollInterval)*time.Millisecond); err != nil {
				return err
			}
			continue
		}

		for _, entry := range result.Entries {
			if err := d.handle(ctx, entry); err != nil {
				return err
			}
			d.nextLogPosition = entry.Header.LogPosition + 1
		}
	}
}

func (d *Decider) handle(ctx context.Context, entry payload.BusEntry) error {
	p := entry.Header.LogPosition

	switch entry.Payload.Type {
	case payload.TypeIntention:
		record := NewVoteRecord(d.currentPolicy)
		state := &intentionState{record: record}
		d.intentions[p] = state
		if v, ok := record.Register(); ok {
			state.decisionMade = true
			return d.proposeVerdict(ctx, p, v)
		}
		return nil

	case payload.TypeVote:
		k := entry.Payload.Vote.IntentionID
		state, ok := d.intentions[k]
		if !ok {
			d.logger.Warn("vote for unknown intention, skipping", "intention_id", k, "position", p)
			return nil
		}
		if state.decisionMade {
			return nil
		}
		if v, ok := state.record.ApplyVote(entry.Payload.Vote); ok {
			state.decisionMade = true
			return d.proposeVerdict(ctx, k, v)
		}
		return nil

	case payload.TypeDeciderPolicy:
		d.currentPolicy = entry.Payload.DeciderPolicy
		return nil

	case payload.TypeVoterPolicy, payload.TypeCommit, payload.TypeAbort:
		return nil

	case payload.TypeControl:
		return &agentbuserr.UnknownPayloadType{Position: p}

	default:
		return nil
	}
}

func (d *Decider) proposeVerdict(ctx context.Context, intentionID uint64, v Verdict) error {
	var pl payload.Payload
	if v.Commit {
		pl = payload.NewCommit(intentionID, v.Reason)
	} else {
		pl = payload.NewAbort(intentionID, v.Reason)
	}
	if _, err := d.log.Propose(ctx, d.busID, pl); err != nil {
		return &agentbuserr.FailedAgentBusCall{Op: "propose verdict", Err: err}
	}
	if d.notifier != nil {
		d.notifier.NotifyVerdict(ctx, d.busID, intentionID, v.Commit, v.Reason)
	}
	return nil
}
