package pb

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the RPC service's fully qualified name on the wire.
const ServiceName = "agentbus.v1.AgentBusService"

// ServiceDesc describes AgentBusService to grpc.Server.RegisterService,
// hand-written in the shape protoc-gen-go-grpc would emit from a real
// .proto file (method name, full path, unary handler signature) since
// AgentBus's message types have no .proto source to generate it from.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AgentBusServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Propose", Handler: proposeHandler},
		{MethodName: "Poll", Handler: pollHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agentbus.proto",
}

func proposeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ProposeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentBusServiceServer).Propose(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Propose"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AgentBusServiceServer).Propose(ctx, req.(*ProposeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func pollHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PollRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentBusServiceServer).Poll(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Poll"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AgentBusServiceServer).Poll(ctx, req.(*PollRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// grpcClient is the real network AgentBusServiceClient, mirroring the
// Invoke-call shape protoc-gen-go-grpc generates.
type grpcClient struct {
	cc grpc.ClientConnInterface
}

// NewAgentBusServiceClient wraps an established connection (dialed with
// grpc.WithDefaultCallOptions(grpc.CallContentSubtype(pb.CodecName)) so
// its wire format matches the server's registered codec).
func NewAgentBusServiceClient(cc grpc.ClientConnInterface) AgentBusServiceClient {
	return &grpcClient{cc: cc}
}

func (c *grpcClient) Propose(ctx context.Context, in *ProposeRequest, opts ...grpc.CallOption) (*ProposeResponse, error) {
	out := new(ProposeResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Propose", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *grpcClient) Poll(ctx context.Context, in *PollRequest, opts ...grpc.CallOption) (*PollResponse, error) {
	out := new(PollResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Poll", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
