package ttsrpc

import (
	"context"
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type echoServer struct {
	UnimplementedTTSServer
}

func (echoServer) ListVoices(context.Context, *ListVoicesRequest) (*ListVoicesResponse, error) {
	return &ListVoicesResponse{
		Voices:  []VoiceInfo{{ID: "af_heart", LangCode: "a"}},
		Aliases: []AliasInfo{{Alias: "en", MapsTo: "af_heart"}},
	}, nil
}

func (echoServer) Synthesize(req *SynthesizeRequest, stream SynthesizeServerStream) error {
	if req.Text == "" {
		return status.Error(codes.InvalidArgument, "empty text")
	}
	for _, b := range []byte(req.Text) {
		if err := stream.Send(&AudioChunk{Audio: []byte{b}}); err != nil {
			return err
		}
	}
	return nil
}

func startServer(t *testing.T, srv TTSServer) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(ServerCodec())
	RegisterTTSServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewClient(conn)
}

func TestListVoices(t *testing.T) {
	client := startServer(t, echoServer{})

	resp, err := client.ListVoices(context.Background(), &ListVoicesRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Voices, 1)
	assert.Equal(t, "af_heart", resp.Voices[0].ID)
	assert.Equal(t, "a", resp.Voices[0].LangCode)
	assert.Equal(t, []AliasInfo{{Alias: "en", MapsTo: "af_heart"}}, resp.Aliases)
}

func TestListVoicesResponse_WireShape(t *testing.T) {
	data, err := jsonCodec{}.Marshal(&ListVoicesResponse{
		Voices:  []VoiceInfo{{ID: "bf_emma", LangCode: "b", Gender: "female", Display: "Emma"}},
		Aliases: []AliasInfo{{Alias: "british", MapsTo: "bf_emma"}},
	})
	require.NoError(t, err)

	var wire struct {
		Voices  []map[string]string `json:"voices"`
		Aliases []map[string]string `json:"aliases"`
	}
	require.NoError(t, json.Unmarshal(data, &wire))
	require.Len(t, wire.Voices, 1)
	assert.Equal(t, "b", wire.Voices[0]["lang_code"])
	assert.NotContains(t, wire.Voices[0], "lang")
	assert.Equal(t, []map[string]string{{"alias": "british", "maps_to": "bf_emma"}}, wire.Aliases)
}

func TestSynthesizeAll_ReassemblesChunksInOrder(t *testing.T) {
	client := startServer(t, echoServer{})

	got, err := client.SynthesizeAll(context.Background(), &SynthesizeRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestSynthesize_StatusPropagates(t *testing.T) {
	client := startServer(t, echoServer{})

	_, err := client.SynthesizeAll(context.Background(), &SynthesizeRequest{})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestUnimplemented(t *testing.T) {
	client := startServer(t, UnimplementedTTSServer{})

	_, err := client.ListVoices(context.Background(), &ListVoicesRequest{})
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}
