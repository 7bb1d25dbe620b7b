package linearize

import (
	"context"
	"math/rand"
	"time"

	"github.com/ocx/agentbus/internal/bus"
	"github.com/ocx/agentbus/internal/envx"
	"github.com/ocx/agentbus/internal/payload"
)

// RandomVoter is a Voter stand-in for linearizability test harnesses: it
// casts a uniformly random boolean vote for every Intention it sees,
// rather than invoking a real evaluator. Useful for exercising
// FirstBooleanWins under concurrent load without standing up an LLM
// client (not part of the production path — spec.md §9 supplements).
type RandomVoter struct {
	log   bus.Log
	env   envx.Environment
	busID string

	nextLogPosition uint64
}

func NewRandomVoter(log bus.Log, env envx.Environment, busID string) *RandomVoter {
	return &RandomVoter{log: log, env: env, busID: busID}
}

var randomVoterFilter = bus.NewPollFilter(payload.TypeIntention)

// Run polls for intentions and casts a random vote on each until ctx is
// cancelled.
func (v *RandomVoter) Run(ctx context.Context, pollInterval time.Duration) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := v.log.Poll(ctx, v.busID, v.nextLogPosition, bus.MaxPollEntries, randomVoterFilter)
		if err != nil {
			return err
		}
		if len(result.Entries) == 0 {
			if err := v.env.Sleep(ctx, pollInterval); err != nil {
				return err
			}
			continue
		}
		for _, entry := range result.Entries {
			var verdict bool
			v.env.WithRNG(func(r *rand.Rand) { verdict = r.Intn(2) == 0 })
			vote := payload.NewVote(entry.Header.LogPosition, verdict, nil)
			if _, err := v.log.Propose(ctx, v.busID, vote); err != nil {
				return err
			}
			v.nextLogPosition = entry.Header.LogPosition + 1
		}
	}
}
