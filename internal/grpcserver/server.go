// Package grpcserver implements AgentBus's gRPC boundary (spec.md §6):
// the Propose/Poll RPCs, translating wire messages in pb/ to and from
// internal/bus.Log calls, plus the bus-id validation and rate-limiting
// interceptors adapted from the teacher's internal/middleware package.
package grpcserver

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ocx/agentbus/internal/bus"
	"github.com/ocx/agentbus/internal/payload"
	"github.com/ocx/agentbus/pb"
)

// Server implements pb.AgentBusServiceServer over a shared bus.Log.
// One Server instance may front any number of distinct bus ids; the
// log itself enforces per-bus isolation (spec.md §5 "Different bus-ids
// share no state").
type Server struct {
	pb.UnimplementedAgentBusServiceServer

	log    bus.Log
	logger *slog.Logger
}

func New(log bus.Log, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{log: log, logger: logger}
}

func (s *Server) Propose(ctx context.Context, req *pb.ProposeRequest) (*pb.ProposeResponse, error) {
	if req.Payload == nil {
		return nil, status.Error(codes.InvalidArgument, "grpcserver: missing payload")
	}
	p, err := fromWirePayload(req.Payload)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	pos, err := s.log.Propose(ctx, req.AgentBusId, p)
	if err != nil {
		return nil, translateErr(err)
	}
	return &pb.ProposeResponse{LogPosition: pos}, nil
}

func (s *Server) Poll(ctx context.Context, req *pb.PollRequest) (*pb.PollResponse, error) {
	max := int(req.MaxEntries)
	if max <= 0 {
		max = bus.MaxPollEntries
	}

	result, err := s.log.Poll(ctx, req.AgentBusId, req.StartLogPosition, max, toBusFilter(req.Filter))
	if err != nil {
		return nil, translateErr(err)
	}

	entries := make([]*pb.BusEntry, len(result.Entries))
	for i, e := range result.Entries {
		entries[i] = toWireEntry(e)
	}
	return &pb.PollResponse{Entries: entries, Complete: result.Complete}, nil
}

func translateErr(err error) error {
	var invalid *bus.ErrInvalidBusID
	if errors.As(err, &invalid) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Unavailable, err.Error())
}

func toBusFilter(f *pb.PollFilterMsg) *bus.PollFilter {
	if f == nil || !f.Filtered {
		return nil
	}
	types := make([]payload.Type, len(f.PayloadTypes))
	for i, t := range f.PayloadTypes {
		types[i] = payload.Type(t)
	}
	return bus.NewPollFilter(types...)
}

func toWireEntry(e payload.BusEntry) *pb.BusEntry {
	return &pb.BusEntry{
		Header:  &pb.Header{LogPosition: e.Header.LogPosition},
		Payload: toWirePayload(e.Payload),
	}
}
