package tts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	pockettts "github.com/MeKo-Christian/go-call-pocket-tts"

	"github.com/example/go-narrate/internal/audio"
)

// PocketOptions configures the pocket-tts CLI backend.
type PocketOptions struct {
	ExecutablePath string
	ConfigPath     string
	Quiet          bool
	Logger         *slog.Logger
}

// PocketEngine delegates synthesis to the pocket-tts CLI. It keeps one
// client per voice since the client binds its voice at construction.
type PocketEngine struct {
	opts    PocketOptions
	mu      sync.Mutex
	clients map[string]pocketGenerator
	newGen  func(pockettts.Options) pocketGenerator
}

type pocketGenerator interface {
	Generate(ctx context.Context, text string) (*pockettts.WAVResult, error)
}

func NewPocketEngine(opts PocketOptions) *PocketEngine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &PocketEngine{
		opts:    opts,
		clients: make(map[string]pocketGenerator),
		newGen: func(o pockettts.Options) pocketGenerator {
			return pockettts.NewClient(o)
		},
	}
}

// PocketPreflight checks that the pocket-tts executable can be found.
func PocketPreflight(executablePath string) error {
	return pockettts.Preflight(executablePath)
}

func (e *PocketEngine) Synthesize(ctx context.Context, text, voice string, speed float64) ([][]float32, error) {
	if speed != 1 {
		e.opts.Logger.Debug("pocket-tts ignores speed", slog.Float64("speed", speed))
	}

	res, err := e.client(voice).Generate(ctx, text)
	if err != nil {
		return nil, err
	}

	samples, format, err := audio.DecodeWAV(res.Data)
	if err != nil {
		return nil, fmt.Errorf("decode pocket-tts output: %w", err)
	}
	if len(samples) == 0 {
		return nil, nil
	}

	e.opts.Logger.Debug("pocket-tts chunk",
		slog.String("voice", voice),
		slog.Int("samples", len(samples)),
		slog.Int("sample_rate", format.SampleRate),
	)

	return [][]float32{samples}, nil
}

func (e *PocketEngine) client(voice string) pocketGenerator {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.clients[voice]; ok {
		return c
	}

	var logWriter io.Writer
	if !e.opts.Quiet {
		logWriter = os.Stderr
	}

	c := e.newGen(pockettts.Options{
		Voice:          voice,
		Config:         e.opts.ConfigPath,
		Quiet:          e.opts.Quiet,
		ExecutablePath: e.opts.ExecutablePath,
		LogWriter:      logWriter,
		Concurrency:    1,
	})
	e.clients[voice] = c

	return c
}
