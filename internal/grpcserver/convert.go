package grpcserver

import (
	"fmt"

	"github.com/ocx/agentbus/internal/payload"
	"github.com/ocx/agentbus/pb"
)

// fromWirePayload decodes a pb.Payload into the internal tagged union,
// rejecting unknown Type values outright — unlike the byte codec
// (spec.md §4.2), which tolerates unknown tags on read, the gRPC
// boundary rejects a client proposing something it cannot have meant.
func fromWirePayload(w *pb.Payload) (payload.Payload, error) {
	switch w.Type {
	case pb.PayloadType_INTENTION:
		return payload.NewIntention(w.IntentionBody), nil
	case pb.PayloadType_VOTE:
		var info *payload.ExternalLlmVoteInfo
		if w.VoteInfo != nil {
			info = &payload.ExternalLlmVoteInfo{Reason: w.VoteInfo.Reason, Model: w.VoteInfo.Model}
		}
		return payload.NewVote(w.VoteIntentionId, w.VoteType, info), nil
	case pb.PayloadType_DECIDER_POLICY:
		return payload.NewDeciderPolicy(payload.DeciderPolicyKind(w.DeciderPolicy)), nil
	case pb.PayloadType_VOTER_POLICY:
		return payload.NewVoterPolicy(w.VoterPolicyPromptOverride), nil
	case pb.PayloadType_COMMIT:
		return payload.NewCommit(w.CommitIntentionId, w.CommitReason), nil
	case pb.PayloadType_ABORT:
		return payload.NewAbort(w.AbortIntentionId, w.AbortReason), nil
	case pb.PayloadType_CONTROL:
		return fromWireControl(w)
	default:
		return payload.Payload{}, fmt.Errorf("grpcserver: unknown wire payload type %d", w.Type)
	}
}

func fromWireControl(w *pb.Payload) (payload.Payload, error) {
	switch payload.ControlKind(w.ControlKind) {
	case payload.ControlAgentInput:
		return payload.NewControlAgentInput(w.ControlText), nil
	case payload.ControlAgentOutput:
		return payload.NewControlAgentOutput(w.ControlText), nil
	default:
		return payload.Payload{
			Type: payload.TypeControl,
			Control: payload.Control{
				Kind:        payload.ControlKind(w.ControlKind),
				Text:        w.ControlText,
				IntentionID: w.ControlIntentionId,
				Body:        w.ControlBody,
			},
		}, nil
	}
}

// toWirePayload encodes the internal tagged union onto the wire.
func toWirePayload(p payload.Payload) *pb.Payload {
	w := &pb.Payload{Type: pb.PayloadType(p.Type)}
	switch p.Type {
	case payload.TypeIntention:
		w.IntentionBody = p.Intention.Body
	case payload.TypeVote:
		w.VoteIntentionId = p.Vote.IntentionID
		w.VoteType = p.Vote.VoteType
		if p.Vote.Info != nil {
			w.VoteInfo = &pb.VoteInfo{Reason: p.Vote.Info.Reason, Model: p.Vote.Info.Model}
		}
	case payload.TypeDeciderPolicy:
		w.DeciderPolicy = int32(p.DeciderPolicy)
	case payload.TypeVoterPolicy:
		w.VoterPolicyPromptOverride = p.VoterPolicy.PromptOverride
	case payload.TypeCommit:
		w.CommitIntentionId = p.Commit.IntentionID
		w.CommitReason = p.Commit.Reason
	case payload.TypeAbort:
		w.AbortIntentionId = p.Abort.IntentionID
		w.AbortReason = p.Abort.Reason
	case payload.TypeControl:
		w.ControlKind = int32(p.Control.Kind)
		w.ControlText = p.Control.Text
		w.ControlIntentionId = p.Control.IntentionID
		w.ControlBody = p.Control.Body
	}
	return w
}
