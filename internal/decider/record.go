package decider

import (
	"fmt"

	"github.com/ocx/agentbus/internal/payload"
)

// Verdict is the (commit, reason) pair a VoteRecord produces when it has
// enough information to decide. ok is false while the record is still
// waiting on more votes.
type Verdict struct {
	Commit bool
	Reason string
}

// VoteRecord is the per-intention decision capability (spec.md §4.5). Each
// DeciderPolicyKind gets its own concrete VoteRecord so the Decider's main
// loop never branches on policy directly — new policies are a new type,
// not a new switch arm.
type VoteRecord interface {
	// Register is called once when the owning Intention is first seen. A
	// returned ok=true verdict is final immediately.
	Register() (v Verdict, ok bool)

	// ApplyVote is called for every subsequent Vote against this
	// intention while the record has not yet decided.
	ApplyVote(vote payload.Vote) (v Verdict, ok bool)
}

// NewVoteRecord constructs the VoteRecord matching policy, per the table
// in spec.md §4.5.
func NewVoteRecord(policy payload.DeciderPolicyKind) VoteRecord {
	switch policy {
	case payload.OnByDefault:
		return stickyRecord{verdict: Verdict{Commit: true, Reason: "ON_BY_DEFAULT policy"}}
	case payload.OffByDefault:
		return stickyRecord{verdict: Verdict{Commit: false, Reason: "OFF_BY_DEFAULT policy"}}
	case payload.FirstBooleanWins:
		return &firstBooleanWinsRecord{}
	default:
		return stickyRecord{verdict: Verdict{Commit: false, Reason: "OFF_BY_DEFAULT policy"}}
	}
}

// stickyRecord backs OnByDefault and OffByDefault: the verdict is decided
// at Register time and never revisited.
type stickyRecord struct {
	verdict Verdict
}

func (r stickyRecord) Register() (Verdict, bool) {
	return r.verdict, true
}

func (r stickyRecord) ApplyVote(payload.Vote) (Verdict, bool) {
	return r.verdict, true
}

// firstBooleanWinsRecord backs FirstBooleanWins: waits for the first vote,
// then is sticky.
type firstBooleanWinsRecord struct {
	decided bool
	verdict Verdict
}

func (r *firstBooleanWinsRecord) Register() (Verdict, bool) {
	return Verdict{}, false
}

func (r *firstBooleanWinsRecord) ApplyVote(vote payload.Vote) (Verdict, bool) {
	if r.decided {
		return r.verdict, true
	}
	r.decided = true
	r.verdict = Verdict{Commit: vote.VoteType, Reason: formatFirstBooleanReason(vote)}
	return r.verdict, true
}

// formatFirstBooleanReason favors the deciding vote's own provenance when
// the Voter driver attached one, falling back to a fixed statement for
// hand-appended votes (CLI, tests) that carry none.
func formatFirstBooleanReason(vote payload.Vote) string {
	if vote.Info != nil && vote.Info.Reason != "" {
		return fmt.Sprintf("[%s] %s", vote.Info.Model, vote.Info.Reason)
	}
	return "No reason provided"
}
