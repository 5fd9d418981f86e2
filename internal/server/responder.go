package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/go-narrate/internal/audio"
	"github.com/example/go-narrate/internal/text"
	"github.com/example/go-narrate/internal/tts"
)

var (
	// ErrInvalidArgument marks requests rejected before any synthesis.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNoAudio is returned when synthesis yields no samples at all.
	ErrNoAudio = errors.New("no audio produced")
)

// ChunkSize is the size of every emitted audio chunk except the last.
const ChunkSize = 32 * 1024

// Request is one remote synthesis call.
type Request struct {
	Text       string
	Voice      string
	SampleRate int
	Speed      float64
}

// EngineSource hands out engines keyed by language.
type EngineSource interface {
	Get(lang string) (tts.Engine, error)
}

// Responder turns a text request into an ordered stream of container bytes.
type Responder struct {
	engines    EngineSource
	catalog    *tts.VoiceCatalog
	voice      string
	sampleRate int
	maxChars   int
	logger     *slog.Logger
}

// ResponderOption configures a Responder.
type ResponderOption func(*Responder)

// WithDefaultVoice is used when a request names no voice.
func WithDefaultVoice(v string) ResponderOption {
	return func(r *Responder) { r.voice = v }
}

func WithSampleRate(rate int) ResponderOption {
	return func(r *Responder) {
		if rate > 0 {
			r.sampleRate = rate
		}
	}
}

func WithMaxChars(n int) ResponderOption {
	return func(r *Responder) { r.maxChars = n }
}

func WithResponderLogger(l *slog.Logger) ResponderOption {
	return func(r *Responder) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewResponder(engines EngineSource, catalog *tts.VoiceCatalog, opts ...ResponderOption) *Responder {
	if catalog == nil {
		catalog = tts.DefaultVoices()
	}
	r := &Responder{
		engines:    engines,
		catalog:    catalog,
		voice:      tts.DefaultFallbackVoice,
		sampleRate: audio.DefaultSampleRate,
		maxChars:   text.DefaultBudget,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Catalog returns the voice catalog requests are resolved against.
func (r *Responder) Catalog() *tts.VoiceCatalog { return r.catalog }

// Stream synthesizes req and passes the encoded container to emit in
// ChunkSize pieces, in order. Nothing is emitted when an error is returned
// before synthesis completes.
func (r *Responder) Stream(ctx context.Context, req Request, emit func([]byte) error) error {
	if strings.TrimSpace(req.Text) == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidArgument)
	}

	requested := req.Voice
	if strings.TrimSpace(requested) == "" {
		requested = r.voice
	}
	choice := r.catalog.Resolve(requested)
	if choice.Fallback {
		r.logger.WarnContext(ctx, "unknown voice, using fallback",
			slog.String("requested", requested),
			slog.String("voice", choice.ID),
		)
	}

	rate := req.SampleRate
	if rate <= 0 {
		rate = r.sampleRate
	}
	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}

	engine, err := r.engines.Get(choice.Lang)
	if err != nil {
		return fmt.Errorf("engine for lang %q: %w", choice.Lang, err)
	}

	var pcm []float32
	for _, seg := range text.SplitSegments(req.Text, text.EffectiveBudget(r.maxChars)) {
		if err := ctx.Err(); err != nil {
			return err
		}
		buffers, err := engine.Synthesize(ctx, seg.Text, choice.ID, speed)
		if err != nil {
			return fmt.Errorf("segment %d: %w", seg.Index, err)
		}
		for _, b := range buffers {
			pcm = append(pcm, b...)
		}
	}
	if len(pcm) == 0 {
		return ErrNoAudio
	}

	wav, err := audio.EncodeWAVPCM16(pcm, rate)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	for off := 0; off < len(wav); off += ChunkSize {
		if err := emit(wav[off:min(off+ChunkSize, len(wav))]); err != nil {
			return err
		}
	}

	return nil
}
