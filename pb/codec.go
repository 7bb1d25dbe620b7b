package pb

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec implements google.golang.org/grpc/encoding.Codec over
// encoding/json. AgentBus's messages are hand-rolled structs with no
// .proto source (the same shape the teacher's pb/mock.go types carry),
// so there is no protobuf wire codec to reach for; registering a JSON
// codec keeps the RPC boundary itself real — a genuine grpc.Server and
// grpc.ClientConn negotiating a "json" content-subtype on the wire —
// without inventing a bespoke binary format or a fake protoc step.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return CodecName }

// CodecName is the content-subtype negotiated on every AgentBus gRPC
// call. Clients must dial with grpc.WithDefaultCallOptions(
// grpc.CallContentSubtype(pb.CodecName)) to match the server.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
