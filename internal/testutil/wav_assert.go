package testutil

import (
	"os"
	"testing"

	"github.com/example/go-narrate/internal/audio"
)

// AssertWAV checks that data is a mono 16-bit PCM container at sampleRate
// holding at least one frame, and returns the parsed container.
func AssertWAV(tb testing.TB, data []byte, sampleRate int) audio.Container {
	tb.Helper()

	c, err := audio.ParseContainer(data)
	if err != nil {
		tb.Fatalf("WAV: %v", err)
		return audio.Container{}
	}

	want := audio.MonoPCM16(sampleRate)
	if c.Format != want {
		tb.Fatalf("WAV: format %s; want %s", c.Format, want)
		return c
	}

	if c.Frames() == 0 {
		tb.Fatal("WAV: data chunk contains zero samples")
	}

	return c
}

// AssertWAVFile reads path and applies AssertWAV.
func AssertWAVFile(tb testing.TB, path string, sampleRate int) audio.Container {
	tb.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		tb.Fatalf("read %s: %v", path, err)
		return audio.Container{}
	}

	return AssertWAV(tb, data, sampleRate)
}

// AssertWAVDurationApprox asserts that the container duration falls within
// [minSec, maxSec].
func AssertWAVDurationApprox(tb testing.TB, data []byte, minSec, maxSec float64) {
	tb.Helper()

	c, err := audio.ParseContainer(data)
	if err != nil {
		tb.Fatalf("WAV duration check: %v", err)
		return
	}

	durationSec := float64(c.Frames()) / float64(c.Format.SampleRate)
	if durationSec < minSec || durationSec > maxSec {
		tb.Fatalf("WAV duration %.3fs out of expected range [%.3fs, %.3fs]", durationSec, minSec, maxSec)
	}
}
