package server_test

import (
	"context"
	"errors"
	"sync"

	"github.com/example/go-narrate/internal/server"
	"github.com/example/go-narrate/internal/tts"
)

// stubEngines implements server.EngineSource around a single engine.
type stubEngines struct {
	engine tts.Engine
	err    error

	mu    sync.Mutex
	langs []string
}

func (s *stubEngines) Get(lang string) (tts.Engine, error) {
	s.mu.Lock()
	s.langs = append(s.langs, lang)
	s.mu.Unlock()
	return s.engine, s.err
}

// call records one Synthesize invocation.
type call struct {
	text  string
	voice string
	speed float64
}

// toneEngine returns n samples of 0.1 per call.
type toneEngine struct {
	n   int
	err error

	mu    sync.Mutex
	calls []call
}

func (e *toneEngine) Synthesize(_ context.Context, text, voice string, speed float64) ([][]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, call{text, voice, speed})
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([]float32, e.n)
	for i := range out {
		out[i] = 0.1
	}
	return [][]float32{out}, nil
}

func (e *toneEngine) Calls() []call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]call(nil), e.calls...)
}

// blockingEngine blocks until release is closed or ctx ends.
type blockingEngine struct {
	release chan struct{}
	onEnter func()
	onExit  func()
}

func (b *blockingEngine) Synthesize(ctx context.Context, _, _ string, _ float64) ([][]float32, error) {
	if b.onEnter != nil {
		b.onEnter()
	}
	if b.onExit != nil {
		defer b.onExit()
	}
	select {
	case <-b.release:
		return [][]float32{{0.1, 0.2}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var errEngineFailed = errors.New("engine failed")

func newResponder(e tts.Engine, opts ...server.ResponderOption) *server.Responder {
	return server.NewResponder(&stubEngines{engine: e}, tts.DefaultVoices(), opts...)
}
