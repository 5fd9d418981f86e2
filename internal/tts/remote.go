package tts

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/example/go-narrate/internal/audio"
	"github.com/example/go-narrate/internal/ttsrpc"
)

// RemoteEngine synthesizes through another narrate server's tts.v1.TTS
// service. Each call is one streamed WAV which is decoded back to samples.
type RemoteEngine struct {
	client     *ttsrpc.Client
	conn       *grpc.ClientConn
	sampleRate int
}

// DialRemoteEngine connects to addr. plaintext disables TLS.
func DialRemoteEngine(addr string, plaintext bool, sampleRate int) (*RemoteEngine, error) {
	conn, err := ttsrpc.Dial(addr, plaintext)
	if err != nil {
		return nil, err
	}

	e := NewRemoteEngine(conn, sampleRate)
	e.conn = conn

	return e, nil
}

// NewRemoteEngine wraps an existing connection. The caller keeps ownership
// of cc.
func NewRemoteEngine(cc grpc.ClientConnInterface, sampleRate int) *RemoteEngine {
	return &RemoteEngine{client: ttsrpc.NewClient(cc), sampleRate: sampleRate}
}

func (e *RemoteEngine) Synthesize(ctx context.Context, text, voice string, speed float64) ([][]float32, error) {
	wav, err := e.client.SynthesizeAll(ctx, &ttsrpc.SynthesizeRequest{
		Text:         text,
		Voice:        voice,
		SampleRateHz: int32(e.sampleRate),
		Speed:        float32(speed),
	})
	if err != nil {
		return nil, fmt.Errorf("remote synthesize: %w", err)
	}
	if len(wav) == 0 {
		return nil, nil
	}

	samples, _, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("decode remote audio: %w", err)
	}

	return [][]float32{samples}, nil
}

// Close closes the connection opened by DialRemoteEngine.
func (e *RemoteEngine) Close() error {
	if e.conn != nil {
		return e.conn.Close()
	}
	return nil
}
