// Package agentbuserr defines the semantic error taxonomy shared by the
// Decider and Voter loops (spec.md §7), kept separate from internal/bus
// and internal/woas's transport-level errors so callers can distinguish
// "the bus call failed" from "the bus returned something we didn't
// expect under this filter."
package agentbuserr

import "fmt"

// FailedAgentBusCall wraps a transport-level error surfaced while a
// Decider or Voter loop was polling or proposing.
type FailedAgentBusCall struct {
	Op  string
	Err error
}

func (e *FailedAgentBusCall) Error() string {
	return fmt.Sprintf("agent bus call failed during %s: %v", e.Op, e.Err)
}

func (e *FailedAgentBusCall) Unwrap() error { return e.Err }

// UnknownPayloadType reports an entry that should not appear under the
// caller's active poll filter (spec.md §4.5: a Control entry reaching the
// Decider's loop).
type UnknownPayloadType struct {
	Position uint64
}

func (e *UnknownPayloadType) Error() string {
	return fmt.Sprintf("unknown payload type at position %d", e.Position)
}

// LlmCallFailed is Voter-only: the evaluator capability itself errored.
// Callers fail closed rather than propagating this upward.
type LlmCallFailed struct {
	Msg string
}

func (e *LlmCallFailed) Error() string {
	return fmt.Sprintf("LLM call failed: %s", e.Msg)
}
