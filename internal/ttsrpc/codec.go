package ttsrpc

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype used on the wire (application/grpc+json).
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// ServerCodec forces the JSON codec on a grpc.Server.
func ServerCodec() grpc.ServerOption {
	return grpc.ForceServerCodec(jsonCodec{})
}

// CallCodec forces the JSON codec on a client call.
func CallCodec() grpc.CallOption {
	return grpc.ForceCodec(jsonCodec{})
}
