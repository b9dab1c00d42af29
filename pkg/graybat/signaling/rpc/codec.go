// Package rpc carries the gRPC plumbing the signaling service is built
// on: a JSON-backed encoding.Codec (standing in for the protobuf
// codec the original C++ signaling service used, since no protoc step
// runs in this environment) plus the hand-written service descriptor
// that would normally be protoc-gen-go-grpc output.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype this codec registers under;
// clients select it with grpc.CallContentSubtype(CodecName).
const CodecName = "graybat-json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements google.golang.org/grpc/encoding.Codec using
// encoding/json instead of protobuf, so the signaling messages can be
// plain Go structs.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}
