// Package bench measures engine throughput for the narrate bench command.
package bench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/example/go-narrate/internal/text"
	"github.com/example/go-narrate/internal/tts"
)

// RunResult holds the timing and audio metadata for a single pass over the
// benchmark text.
type RunResult struct {
	Index    int
	Cold     bool // first run, engine not yet warm
	Segments int
	Duration time.Duration
	Audio    time.Duration
	RTF      float64
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min     time.Duration
	Max     time.Duration
	Mean    time.Duration
	MeanRTF float64
}

// ComputeStats calculates min, max and mean duration and the mean RTF.
func ComputeStats(runs []RunResult) Stats {
	if len(runs) == 0 {
		return Stats{}
	}
	s := Stats{Min: runs[0].Duration, Max: runs[0].Duration}
	var sum time.Duration
	var rtf float64
	for _, r := range runs {
		s.Min = min(s.Min, r.Duration)
		s.Max = max(s.Max, r.Duration)
		sum += r.Duration
		rtf += r.RTF
	}
	s.Mean = sum / time.Duration(len(runs))
	s.MeanRTF = rtf / float64(len(runs))
	return s
}

// CalcRTF returns synthesis_duration / audio_duration, or 0 when no audio
// was produced.
func CalcRTF(synthDur, audioDur time.Duration) float64 {
	if audioDur <= 0 {
		return 0
	}
	return float64(synthDur) / float64(audioDur)
}

// AudioDuration converts a mono sample count to playback time.
func AudioDuration(samples, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(samples) * int64(time.Second) / int64(sampleRate))
}

// CheckRTFThreshold returns an error if meanRTF > threshold.
// A threshold of 0 disables the gate.
func CheckRTFThreshold(meanRTF, threshold float64) error {
	if threshold <= 0 {
		return nil
	}
	if meanRTF > threshold {
		return fmt.Errorf("mean RTF %.3f exceeds threshold %.3f", meanRTF, threshold)
	}
	return nil
}

// Options describes one benchmark.
type Options struct {
	Text       string
	Voice      string
	Speed      float64
	SampleRate int
	MaxChars   int
	Runs       int
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Run segments opts.Text once and synthesizes every segment opts.Runs times
// on engine, timing each full pass.
func Run(ctx context.Context, engine tts.Engine, opts Options) ([]RunResult, error) {
	if strings.TrimSpace(opts.Text) == "" {
		return nil, text.ErrEmptyText
	}
	if opts.Runs < 1 {
		return nil, errors.New("runs must be at least 1")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	segments := text.SplitSegments(opts.Text, text.EffectiveBudget(opts.MaxChars))
	results := make([]RunResult, 0, opts.Runs)
	for i := range opts.Runs {
		start := now()
		samples := 0
		for _, seg := range segments {
			buffers, err := engine.Synthesize(ctx, seg.Text, opts.Voice, opts.Speed)
			if err != nil {
				return nil, fmt.Errorf("run %d segment %d: %w", i+1, seg.Index, err)
			}
			for _, b := range buffers {
				samples += len(b)
			}
		}
		elapsed := now().Sub(start)
		audioDur := AudioDuration(samples, opts.SampleRate)

		results = append(results, RunResult{
			Index:    i,
			Cold:     i == 0,
			Segments: len(segments),
			Duration: elapsed,
			Audio:    audioDur,
			RTF:      CalcRTF(elapsed, audioDur),
		})
	}

	return results, nil
}

// FormatTable writes a human-readable table of bench results to w.
func FormatTable(runs []RunResult, stats Stats, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-5s  %-5s  %4s  %10s  %12s  %8s\n", "Run", "Cold", "Segs", "MS", "Audio(ms)", "RTF")
	fmt.Fprintln(sb, strings.Repeat("-", 54))

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}
		fmt.Fprintf(sb, "%-5d  %-5s  %4d  %10.1f  %12.1f  %8.3f\n",
			r.Index+1, cold, r.Segments,
			float64(r.Duration.Milliseconds()),
			float64(r.Audio.Milliseconds()),
			r.RTF,
		)
	}

	fmt.Fprintln(sb, strings.Repeat("-", 54))
	fmt.Fprintf(sb, "min %.1fms  mean %.1fms  max %.1fms  mean RTF %.3f\n",
		float64(stats.Min.Milliseconds()),
		float64(stats.Mean.Milliseconds()),
		float64(stats.Max.Milliseconds()),
		stats.MeanRTF,
	)

	_, _ = io.WriteString(w, sb.String())
}

type jsonReport struct {
	Runs  []jsonRun `json:"runs"`
	Stats jsonStats `json:"stats"`
}

type jsonRun struct {
	Index      int     `json:"index"`
	Cold       bool    `json:"cold"`
	Segments   int     `json:"segments"`
	DurationMS float64 `json:"duration_ms"`
	AudioMS    float64 `json:"audio_ms"`
	RTF        float64 `json:"rtf"`
}

type jsonStats struct {
	MinMS   float64 `json:"min_ms"`
	MeanMS  float64 `json:"mean_ms"`
	MaxMS   float64 `json:"max_ms"`
	MeanRTF float64 `json:"mean_rtf"`
}

// FormatJSON writes an indented JSON report of bench results to w.
func FormatJSON(runs []RunResult, stats Stats, w io.Writer) error {
	jr := jsonReport{
		Runs: make([]jsonRun, len(runs)),
		Stats: jsonStats{
			MinMS:   float64(stats.Min.Milliseconds()),
			MeanMS:  float64(stats.Mean.Milliseconds()),
			MaxMS:   float64(stats.Max.Milliseconds()),
			MeanRTF: stats.MeanRTF,
		},
	}
	for i, r := range runs {
		jr.Runs[i] = jsonRun{
			Index:      r.Index,
			Cold:       r.Cold,
			Segments:   r.Segments,
			DurationMS: float64(r.Duration.Milliseconds()),
			AudioMS:    float64(r.Audio.Milliseconds()),
			RTF:        r.RTF,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jr)
}
