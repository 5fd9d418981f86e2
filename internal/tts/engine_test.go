package tts

import (
	"context"
	"errors"
	"testing"

	pockettts "github.com/MeKo-Christian/go-call-pocket-tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/go-narrate/internal/audio"
	"github.com/example/go-narrate/internal/config"
)

func TestNewFactory(t *testing.T) {
	base := config.DefaultConfig().TTS

	t.Run("exec", func(t *testing.T) {
		f, err := NewFactory(base, nil)
		require.NoError(t, err)

		e, err := f("b")
		require.NoError(t, err)
		exe, ok := e.(*ExecEngine)
		require.True(t, ok)
		assert.Equal(t, "b", exe.lang)
		assert.Equal(t, []string{"kokoro-jsonl"}, exe.args)
	})

	t.Run("exec with empty command", func(t *testing.T) {
		cfg := base
		cfg.ExecCommand = ""
		_, err := NewFactory(cfg, nil)
		require.Error(t, err)
	})

	t.Run("pockettts", func(t *testing.T) {
		cfg := base
		cfg.Engine = "pocket-tts"
		f, err := NewFactory(cfg, nil)
		require.NoError(t, err)

		e, err := f("a")
		require.NoError(t, err)
		assert.IsType(t, &PocketEngine{}, e)
	})

	t.Run("remote requires address", func(t *testing.T) {
		cfg := base
		cfg.Engine = config.EngineRemote
		_, err := NewFactory(cfg, nil)
		require.Error(t, err)
	})

	t.Run("remote", func(t *testing.T) {
		cfg := base
		cfg.Engine = config.EngineRemote
		cfg.RemoteAddr = "localhost:1"
		cfg.RemoteInsecure = true
		f, err := NewFactory(cfg, nil)
		require.NoError(t, err)

		e, err := f("a")
		require.NoError(t, err)
		require.IsType(t, &RemoteEngine{}, e)
		require.NoError(t, closeEngine(e))
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := base
		cfg.Engine = "onnx"
		_, err := NewFactory(cfg, nil)
		require.Error(t, err)
	})
}

type fakeGenerator struct {
	voice string
	data  []byte
	err   error
	texts []string
}

func (g *fakeGenerator) Generate(_ context.Context, text string) (*pockettts.WAVResult, error) {
	g.texts = append(g.texts, text)
	if g.err != nil {
		return nil, g.err
	}
	return &pockettts.WAVResult{Data: g.data, SampleRate: 24000, Channels: 1, BitsPerSample: 16}, nil
}

func TestPocketEngine(t *testing.T) {
	wav, err := audio.EncodeWAVPCM16([]float32{0.5, -0.5, 0}, 24000)
	require.NoError(t, err)

	gens := map[string]*fakeGenerator{}
	e := NewPocketEngine(PocketOptions{Quiet: true})
	e.newGen = func(o pockettts.Options) pocketGenerator {
		g := &fakeGenerator{voice: o.Voice, data: wav}
		gens[o.Voice] = g
		return g
	}

	buffers, err := e.Synthesize(context.Background(), "Hi.", "alba", 1)
	require.NoError(t, err)
	require.Len(t, buffers, 1)
	assert.Len(t, buffers[0], 3)
	assert.InDelta(t, 0.5, buffers[0][0], 1e-3)

	_, err = e.Synthesize(context.Background(), "Again.", "alba", 1)
	require.NoError(t, err)
	_, err = e.Synthesize(context.Background(), "Other.", "marius", 1)
	require.NoError(t, err)

	require.Len(t, gens, 2)
	assert.Equal(t, []string{"Hi.", "Again."}, gens["alba"].texts)
}

func TestPocketEngine_Errors(t *testing.T) {
	boom := errors.New("pocket-tts failed")
	e := NewPocketEngine(PocketOptions{})
	e.newGen = func(pockettts.Options) pocketGenerator { return &fakeGenerator{err: boom} }

	_, err := e.Synthesize(context.Background(), "x", "alba", 1)
	require.ErrorIs(t, err, boom)

	e = NewPocketEngine(PocketOptions{})
	e.newGen = func(pockettts.Options) pocketGenerator { return &fakeGenerator{data: []byte("garbage")} }

	_, err = e.Synthesize(context.Background(), "x", "alba", 1)
	require.Error(t, err)
}
