package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/go-narrate/internal/tts"
	"github.com/example/go-narrate/internal/ttsrpc"
)

// RequestRecorder receives one call per finished remote request.
type RequestRecorder interface {
	RecordRequest(ctx context.Context, transport, code string, elapsed time.Duration, bytes int)
}

type grpcService struct {
	ttsrpc.UnimplementedTTSServer

	responder *Responder
	recorder  RequestRecorder
	log       *slog.Logger
}

// NewGRPCServer returns a grpc.Server exposing tts.v1.TTS backed by r.
// recorder may be nil.
func NewGRPCServer(r *Responder, recorder RequestRecorder, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := grpc.NewServer(append([]grpc.ServerOption{ttsrpc.ServerCodec()}, opts...)...)
	ttsrpc.RegisterTTSServer(s, &grpcService{responder: r, recorder: recorder, log: logger})

	return s
}

func (g *grpcService) ListVoices(context.Context, *ttsrpc.ListVoicesRequest) (*ttsrpc.ListVoicesResponse, error) {
	return VoiceList(g.responder.Catalog()), nil
}

// VoiceList converts a catalog into the ListVoices wire response. Aliases
// are sorted by name.
func VoiceList(catalog *tts.VoiceCatalog) *ttsrpc.ListVoicesResponse {
	voices := catalog.ListVoices()
	names := catalog.AliasNames()
	aliases := catalog.Aliases()

	resp := &ttsrpc.ListVoicesResponse{
		Voices:  make([]ttsrpc.VoiceInfo, 0, len(voices)),
		Aliases: make([]ttsrpc.AliasInfo, 0, len(names)),
	}
	for _, v := range voices {
		resp.Voices = append(resp.Voices, ttsrpc.VoiceInfo{ID: v.ID, LangCode: v.Lang, Gender: v.Gender, Display: v.Display})
	}
	for _, name := range names {
		resp.Aliases = append(resp.Aliases, ttsrpc.AliasInfo{Alias: name, MapsTo: aliases[name]})
	}

	return resp
}

func (g *grpcService) Synthesize(req *ttsrpc.SynthesizeRequest, stream ttsrpc.SynthesizeServerStream) error {
	ctx := stream.Context()
	start := time.Now()
	sent := 0

	err := g.responder.Stream(ctx, Request{
		Text:       req.Text,
		Voice:      req.Voice,
		SampleRate: int(req.SampleRateHz),
		Speed:      float64(req.Speed),
	}, func(chunk []byte) error {
		sent += len(chunk)
		return stream.Send(&ttsrpc.AudioChunk{Audio: chunk})
	})
	err = grpcStatus(err)

	code := status.Code(err)
	if g.recorder != nil {
		g.recorder.RecordRequest(ctx, "grpc", code.String(), time.Since(start), sent)
	}

	attrs := []any{
		slog.String("voice", req.Voice),
		slog.Int("text_len", len(req.Text)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		slog.String("code", code.String()),
	}
	if err != nil {
		g.log.WarnContext(ctx, "grpc synthesis failed", append(attrs, slog.String("error", err.Error()))...)
		return err
	}
	g.log.InfoContext(ctx, "grpc synthesis complete", append(attrs, slog.Int("wav_bytes", sent))...)

	return nil
}

// grpcStatus maps responder errors to gRPC status errors.
func grpcStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
