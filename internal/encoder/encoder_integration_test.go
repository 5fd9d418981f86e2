package encoder

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/go-narrate/internal/audio"
	"github.com/example/go-narrate/internal/testutil"
)

func writeTone(t *testing.T) string {
	t.Helper()
	samples := make([]float32, audio.DefaultSampleRate/2)
	for i := range samples {
		samples[i] = float32(0.3 * math.Sin(2*math.Pi*440*float64(i)/audio.DefaultSampleRate))
	}
	p := filepath.Join(t.TempDir(), "tone.wav")
	require.NoError(t, audio.WriteWAVFile(p, samples, audio.DefaultSampleRate))
	return p
}

func TestEncode_RealLame(t *testing.T) {
	lame := testutil.RequireLame(t)
	wav := writeTone(t)
	out := filepath.Join(t.TempDir(), "tone.mp3")

	res, err := New(WithLame(lame)).Encode(context.Background(), wav, out)
	require.NoError(t, err)
	assert.Equal(t, Result{OK: true, Tool: ToolLame}, res)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestEncode_RealFFmpeg(t *testing.T) {
	ffmpeg := testutil.RequireFFmpeg(t)
	wav := writeTone(t)
	out := filepath.Join(t.TempDir(), "tone.mp3")

	res, err := New(WithLame("/nonexistent/lame"), WithFFmpeg(ffmpeg)).Encode(context.Background(), wav, out)
	require.NoError(t, err)
	assert.Equal(t, Result{OK: true, Tool: ToolFFmpeg}, res)
	assert.FileExists(t, out)
}
