package ttsrpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is a typed tts.v1.TTS client using the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial opens a lazy client connection to addr.
func Dial(addr string, plaintext bool, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	creds := insecure.NewCredentials()
	if !plaintext {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	return conn, nil
}

func (c *Client) ListVoices(ctx context.Context, in *ListVoicesRequest, opts ...grpc.CallOption) (*ListVoicesResponse, error) {
	out := new(ListVoicesResponse)
	opts = append([]grpc.CallOption{CallCodec()}, opts...)
	if err := c.cc.Invoke(ctx, ListVoicesMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// SynthesizeClientStream is the client side of the Synthesize stream.
type SynthesizeClientStream interface {
	Recv() (*AudioChunk, error)
	grpc.ClientStream
}

func (c *Client) Synthesize(ctx context.Context, in *SynthesizeRequest, opts ...grpc.CallOption) (SynthesizeClientStream, error) {
	opts = append([]grpc.CallOption{CallCodec()}, opts...)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], SynthesizeMethod, opts...)
	if err != nil {
		return nil, err
	}

	x := &synthesizeClientStream{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}

	return x, nil
}

// SynthesizeAll runs Synthesize and concatenates every received chunk.
func (c *Client) SynthesizeAll(ctx context.Context, in *SynthesizeRequest, opts ...grpc.CallOption) ([]byte, error) {
	stream, err := c.Synthesize(ctx, in, opts...)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
		buf.Write(chunk.GetAudio())
	}
}

type synthesizeClientStream struct {
	grpc.ClientStream
}

func (x *synthesizeClientStream) Recv() (*AudioChunk, error) {
	m := new(AudioChunk)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}

	return m, nil
}
