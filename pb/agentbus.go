// Package pb defines the wire message types and service interfaces for
// AgentBus's gRPC boundary (spec.md §6), hand-rolled in the same style
// as the teacher's pb/mock.go rather than generated from a .proto file:
// plain structs, a service interface pair, an Unimplemented stub, and a
// Mock client for tests that don't want a live server.
package pb

import (
	"context"

	"google.golang.org/grpc"
)

// PayloadType mirrors payload.Type on the wire.
type PayloadType int32

const (
	PayloadType_INTENTION      PayloadType = 0
	PayloadType_VOTE           PayloadType = 1
	PayloadType_DECIDER_POLICY PayloadType = 2
	PayloadType_VOTER_POLICY   PayloadType = 3
	PayloadType_COMMIT         PayloadType = 4
	PayloadType_ABORT          PayloadType = 5
	PayloadType_CONTROL        PayloadType = 6
)

// VoteInfo carries optional LLM-evaluator provenance on a Vote payload.
type VoteInfo struct {
	Reason string
	Model  string
}

// Payload is the wire form of the closed tagged union in internal/payload.
// Exactly one field group matching Type is meaningful.
type Payload struct {
	Type PayloadType

	IntentionBody string

	VoteIntentionId uint64
	VoteType        bool
	VoteInfo        *VoteInfo

	DeciderPolicy int32

	VoterPolicyPromptOverride string

	CommitIntentionId uint64
	CommitReason      string

	AbortIntentionId uint64
	AbortReason      string

	ControlKind        int32
	ControlText        string
	ControlIntentionId uint64
	ControlBody        string
}

// Header carries an entry's claimed log position.
type Header struct {
	LogPosition uint64
}

// BusEntry is one claimed log cell on the wire.
type BusEntry struct {
	Header  *Header
	Payload *Payload
}

// ProposeRequest is the Propose RPC's request message (spec.md §6).
type ProposeRequest struct {
	AgentBusId string
	Payload    *Payload
}

// ProposeResponse is the Propose RPC's response message.
type ProposeResponse struct {
	LogPosition uint64
}

// GetAgentBusId lets interceptors validate either request message
// through one shared interface without a type switch.
func (r *ProposeRequest) GetAgentBusId() string { return r.AgentBusId }

// PollFilterMsg selects which payload types a Poll call returns; an
// empty PayloadTypes with Filtered=true matches nothing, matching
// bus.PollFilter's "Some(∅) matches nothing" semantics.
type PollFilterMsg struct {
	Filtered     bool
	PayloadTypes []PayloadType
}

// PollRequest is the Poll RPC's request message.
type PollRequest struct {
	AgentBusId       string
	StartLogPosition uint64
	MaxEntries       int32
	Filter           *PollFilterMsg
}

// PollResponse is the Poll RPC's response message.
type PollResponse struct {
	Entries  []*BusEntry
	Complete bool
}

// GetAgentBusId lets interceptors validate either request message
// through one shared interface without a type switch.
func (r *PollRequest) GetAgentBusId() string { return r.AgentBusId }

// AgentBusServiceClient is the client side of the Propose/Poll boundary.
type AgentBusServiceClient interface {
	Propose(ctx context.Context, in *ProposeRequest, opts ...grpc.CallOption) (*ProposeResponse, error)
	Poll(ctx context.Context, in *PollRequest, opts ...grpc.CallOption) (*PollResponse, error)
}

// AgentBusServiceServer is the server side of the Propose/Poll boundary.
type AgentBusServiceServer interface {
	Propose(context.Context, *ProposeRequest) (*ProposeResponse, error)
	Poll(context.Context, *PollRequest) (*PollResponse, error)
}

// UnimplementedAgentBusServiceServer can be embedded to satisfy
// AgentBusServiceServer for handlers not yet wired up, following the
// protoc-gen-go forward-compatibility convention.
type UnimplementedAgentBusServiceServer struct{}

func (UnimplementedAgentBusServiceServer) Propose(context.Context, *ProposeRequest) (*ProposeResponse, error) {
	return nil, nil
}

func (UnimplementedAgentBusServiceServer) Poll(context.Context, *PollRequest) (*PollResponse, error) {
	return nil, nil
}

// MockAgentBusClient is an in-process AgentBusServiceClient that talks
// directly to a server implementation without a network round-trip,
// for CLI/harness tests that don't want to stand up a listener.
type MockAgentBusClient struct {
	Server AgentBusServiceServer
}

func (m *MockAgentBusClient) Propose(ctx context.Context, in *ProposeRequest, _ ...grpc.CallOption) (*ProposeResponse, error) {
	return m.Server.Propose(ctx, in)
}

func (m *MockAgentBusClient) Poll(ctx context.Context, in *PollRequest, _ ...grpc.CallOption) (*PollResponse, error) {
	return m.Server.Poll(ctx, in)
}
