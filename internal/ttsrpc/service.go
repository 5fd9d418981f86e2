package ttsrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName      = "tts.v1.TTS"
	ListVoicesMethod = "/tts.v1.TTS/ListVoices"
	SynthesizeMethod = "/tts.v1.TTS/Synthesize"
)

// TTSServer is implemented by the synthesis service.
type TTSServer interface {
	ListVoices(context.Context, *ListVoicesRequest) (*ListVoicesResponse, error)
	Synthesize(*SynthesizeRequest, SynthesizeServerStream) error
}

// SynthesizeServerStream is the server side of the Synthesize stream.
type SynthesizeServerStream interface {
	Send(*AudioChunk) error
	grpc.ServerStream
}

// UnimplementedTTSServer returns Unimplemented for every method.
type UnimplementedTTSServer struct{}

func (UnimplementedTTSServer) ListVoices(context.Context, *ListVoicesRequest) (*ListVoicesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListVoices not implemented")
}

func (UnimplementedTTSServer) Synthesize(*SynthesizeRequest, SynthesizeServerStream) error {
	return status.Error(codes.Unimplemented, "method Synthesize not implemented")
}

// RegisterTTSServer registers srv on s. The server must use ServerCodec.
func RegisterTTSServer(s grpc.ServiceRegistrar, srv TTSServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes tts.v1.TTS.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TTSServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListVoices",
			Handler:    listVoicesHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Synthesize",
			Handler:       synthesizeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "tts/v1/tts.proto",
}

func listVoicesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListVoicesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TTSServer).ListVoices(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListVoicesMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TTSServer).ListVoices(ctx, req.(*ListVoicesRequest))
	}

	return interceptor(ctx, in, info, handler)
}

func synthesizeHandler(srv any, stream grpc.ServerStream) error {
	in := new(SynthesizeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	return srv.(TTSServer).Synthesize(in, &synthesizeServerStream{stream})
}

type synthesizeServerStream struct {
	grpc.ServerStream
}

func (x *synthesizeServerStream) Send(m *AudioChunk) error {
	return x.ServerStream.SendMsg(m)
}
