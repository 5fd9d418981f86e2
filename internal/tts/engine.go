// Package tts holds the synthesis engine abstraction, its backends, the
// voice catalog and the per-language engine registry.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/example/go-narrate/internal/config"
)

// Engine synthesizes one piece of text into an ordered sequence of audio
// buffers at the engine's fixed sample rate. Implementations are not assumed
// to be safe for concurrent use.
type Engine interface {
	Synthesize(ctx context.Context, text, voice string, speed float64) ([][]float32, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, text, voice string, speed float64) ([][]float32, error)

func (f EngineFunc) Synthesize(ctx context.Context, text, voice string, speed float64) ([][]float32, error) {
	return f(ctx, text, voice, speed)
}

// Factory creates an engine for a language code.
type Factory func(lang string) (Engine, error)

// ErrUnknownEngine is returned for an engine name NewFactory does not know.
var ErrUnknownEngine = errors.New("unknown engine")

// NewFactory builds the engine factory selected by cfg.Engine.
func NewFactory(cfg config.TTSConfig, logger *slog.Logger) (Factory, error) {
	if logger == nil {
		logger = slog.Default()
	}

	engine, err := config.NormalizeEngine(cfg.Engine)
	if err != nil {
		return nil, err
	}

	switch engine {
	case config.EngineExec:
		args, err := ParseCommand(cfg.ExecCommand)
		if err != nil {
			return nil, err
		}
		return func(lang string) (Engine, error) {
			return NewExecEngine(args, lang, WithExecLogger(logger), WithExecSampleRate(cfg.SampleRate)), nil
		}, nil
	case config.EnginePocketTTS:
		return func(string) (Engine, error) {
			return NewPocketEngine(PocketOptions{
				ExecutablePath: cfg.PocketCLIPath,
				ConfigPath:     cfg.PocketConfigPath,
				Quiet:          cfg.Quiet,
				Logger:         logger,
			}), nil
		}, nil
	case config.EngineRemote:
		if cfg.RemoteAddr == "" {
			return nil, errors.New("tts.remote_addr is required for the remote engine")
		}
		return func(string) (Engine, error) {
			return DialRemoteEngine(cfg.RemoteAddr, cfg.RemoteInsecure, cfg.SampleRate)
		}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownEngine, cfg.Engine)
	}
}

// closeEngine closes e when it holds resources.
func closeEngine(e Engine) error {
	if c, ok := e.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
