// Package payload defines AgentBus's closed tagged-union entry model and
// the deterministic byte codec used to persist it in a write-once address
// space. Every exported type here is exhaustively enumerated in Type; a
// payload that decodes to an unknown tag is reported as (Payload{}, false)
// rather than an error, so callers can skip forward-incompatible entries.
package payload

import "fmt"

// Type is the SelectivePollType discriminant: every payload variant maps
// 1:1 onto one Type value, used both on the wire (as the first encoded
// byte) and for server-side poll filtering.
type Type uint8

const (
	TypeIntention Type = iota
	TypeVote
	TypeDeciderPolicy
	TypeVoterPolicy
	TypeCommit
	TypeAbort
	TypeControl
)

func (t Type) String() string {
	switch t {
	case TypeIntention:
		return "Intention"
	case TypeVote:
		return "Vote"
	case TypeDeciderPolicy:
		return "DeciderPolicy"
	case TypeVoterPolicy:
		return "VoterPolicy"
	case TypeCommit:
		return "Commit"
	case TypeAbort:
		return "Abort"
	case TypeControl:
		return "Control"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// DeciderPolicyKind selects the Decider's decision semantics (spec.md §4.5).
type DeciderPolicyKind uint8

const (
	OffByDefault DeciderPolicyKind = iota
	OnByDefault
	FirstBooleanWins
)

func (k DeciderPolicyKind) String() string {
	switch k {
	case OffByDefault:
		return "OFF_BY_DEFAULT"
	case OnByDefault:
		return "ON_BY_DEFAULT"
	case FirstBooleanWins:
		return "FIRST_BOOLEAN_WINS"
	default:
		return fmt.Sprintf("DeciderPolicyKind(%d)", uint8(k))
	}
}

// ParseDeciderPolicyKind accepts the names String returns: OFF_BY_DEFAULT,
// ON_BY_DEFAULT and FIRST_BOOLEAN_WINS.
func ParseDeciderPolicyKind(s string) (DeciderPolicyKind, error) {
	switch s {
	case "OFF_BY_DEFAULT":
		return OffByDefault, nil
	case "ON_BY_DEFAULT":
		return OnByDefault, nil
	case "FIRST_BOOLEAN_WINS":
		return FirstBooleanWins, nil
	default:
		return 0, fmt.Errorf("unknown decider policy %q", s)
	}
}

// ControlKind enumerates Control's sub-variants (spec.md §3).
type ControlKind uint8

const (
	ControlAgentInput ControlKind = iota
	ControlInferenceInput
	ControlInferenceOutput
	ControlActionOutput
	ControlAgentOutput
)

// Header carries the entry's claimed log position. Clients never set it;
// servers reconstruct it from the cell address on read (spec.md §3 invariant).
type Header struct {
	LogPosition uint64
}

// ExternalLlmVoteInfo is the optional provenance attached to a Vote cast by
// the Voter driver (as opposed to a hand-appended test/CLI vote).
type ExternalLlmVoteInfo struct {
	Reason string
	Model  string
}

// Intention is an agent-proposed action code, subject to voting and decision.
type Intention struct {
	Body string
}

// Vote is a boolean safety signal against a specific Intention.
type Vote struct {
	IntentionID uint64
	VoteType    bool
	Info        *ExternalLlmVoteInfo // nil if absent
}

// VoterPolicy overrides the default safety prompt used by the Voter driver.
type VoterPolicy struct {
	PromptOverride string
}

// Commit records that intention_id was approved, with the deciding reason.
type Commit struct {
	IntentionID uint64
	Reason      string
}

// Abort records that intention_id was rejected, with the deciding reason.
type Abort struct {
	IntentionID uint64
	Reason      string
}

// Control carries boundary/I-O signals that ride the bus alongside the
// decision protocol (agent input/output, inference input/output, and
// action output tied to an intention).
type Control struct {
	Kind        ControlKind
	Text        string // AgentInput, InferenceInput, InferenceOutput, AgentOutput
	IntentionID uint64 // ActionOutput only
	Body        string // ActionOutput only
}

// Payload is the closed tagged union stored at every log position. Exactly
// one of the pointer/value fields matching Type is populated; callers must
// switch on Type, never infer it from which field is non-nil.
type Payload struct {
	Type Type

	Intention     Intention
	Vote          Vote
	DeciderPolicy DeciderPolicyKind
	VoterPolicy   VoterPolicy
	Commit        Commit
	Abort         Abort
	Control       Control
}

// BusEntry is a claimed log cell: a Header whose LogPosition always equals
// the cell's address, paired with its decoded Payload.
type BusEntry struct {
	Header  Header
	Payload Payload
}

func NewIntention(body string) Payload {
	return Payload{Type: TypeIntention, Intention: Intention{Body: body}}
}

func NewVote(intentionID uint64, vote bool, info *ExternalLlmVoteInfo) Payload {
	v := Vote{IntentionID: intentionID, VoteType: vote}
	if info != nil {
		v.Info = info
	}
	return Payload{Type: TypeVote, Vote: v}
}

func NewDeciderPolicy(kind DeciderPolicyKind) Payload {
	return Payload{Type: TypeDeciderPolicy, DeciderPolicy: kind}
}

func NewVoterPolicy(promptOverride string) Payload {
	return Payload{Type: TypeVoterPolicy, VoterPolicy: VoterPolicy{PromptOverride: promptOverride}}
}

func NewCommit(intentionID uint64, reason string) Payload {
	return Payload{Type: TypeCommit, Commit: Commit{IntentionID: intentionID, Reason: reason}}
}

func NewAbort(intentionID uint64, reason string) Payload {
	return Payload{Type: TypeAbort, Abort: Abort{IntentionID: intentionID, Reason: reason}}
}

func NewControlAgentInput(text string) Payload {
	return Payload{Type: TypeControl, Control: Control{Kind: ControlAgentInput, Text: text}}
}

func NewControlAgentOutput(text string) Payload {
	return Payload{Type: TypeControl, Control: Control{Kind: ControlAgentOutput, Text: text}}
}

func NewControlInferenceInput(text string) Payload {
	return Payload{Type: TypeControl, Control: Control{Kind: ControlInferenceInput, Text: text}}
}

func NewControlInferenceOutput(text string) Payload {
	return Payload{Type: TypeControl, Control: Control{Kind: ControlInferenceOutput, Text: text}}
}

func NewControlActionOutput(intentionID uint64, body string) Payload {
	return Payload{Type: TypeControl, Control: Control{Kind: ControlActionOutput, IntentionID: intentionID, Body: body}}
}
