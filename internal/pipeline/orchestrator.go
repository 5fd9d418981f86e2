// Package pipeline drives per-segment synthesis of one document, writes the
// per-segment containers, assembles the full container and encodes it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/go-narrate/internal/audio"
	"github.com/example/go-narrate/internal/encoder"
	"github.com/example/go-narrate/internal/text"
	"github.com/example/go-narrate/internal/tts"
)

// ErrNoAudio is returned when the engine yields no samples for a segment.
var ErrNoAudio = errors.New("engine produced no audio")

// ManifestName is the ffmpeg concat-demuxer list written next to the parts.
const ManifestName = "concat.txt"

// Encoder converts the assembled WAV to the final lossy artifact.
type Encoder interface {
	Encode(ctx context.Context, wavPath, outPath string) (encoder.Result, error)
}

// Orchestrator synthesizes the segments of one job sequentially.
type Orchestrator struct {
	engine     tts.Engine
	voice      string
	speed      float64
	sampleRate int
	final      FinalFormat
	encoder    Encoder
	observer   Observer
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithVoice(voice string) Option {
	return func(o *Orchestrator) { o.voice = voice }
}

func WithSpeed(speed float64) Option {
	return func(o *Orchestrator) {
		if speed > 0 {
			o.speed = speed
		}
	}
}

func WithSampleRate(rate int) Option {
	return func(o *Orchestrator) {
		if rate > 0 {
			o.sampleRate = rate
		}
	}
}

func WithFinal(f FinalFormat) Option {
	return func(o *Orchestrator) { o.final = f }
}

func WithEncoder(e Encoder) Option {
	return func(o *Orchestrator) { o.encoder = e }
}

func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(engine tts.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engine:     engine,
		speed:      1.0,
		sampleRate: audio.DefaultSampleRate,
		final:      FinalMP3,
		observer:   NopObserver{},
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Run synthesizes segments in order into job. The first failing segment
// fails the job and stops further synthesis; parts already written are kept.
// Run always returns job, with its terminal state set.
func (o *Orchestrator) Run(ctx context.Context, job *Job, segments []text.Segment) *Job {
	start := o.now()
	if err := job.Start(start); err != nil {
		_ = job.Fail(err)
		o.observer.JobDone(job)
		return job
	}
	defer func() {
		job.finish(o.now())
		o.observer.JobDone(job)
	}()

	logger := o.logger.With(slog.String("base", job.Base))

	if len(segments) == 0 {
		_ = job.Fail(fmt.Errorf("no segments: %w", text.ErrEmptyText))
		return job
	}

	if err := os.MkdirAll(job.PartsDir(), 0o755); err != nil {
		_ = job.Fail(fmt.Errorf("create parts dir: %w", err))
		return job
	}

	for i, seg := range segments {
		outcome := o.synthesizeSegment(ctx, job, seg)
		job.Segments = append(job.Segments, outcome)

		if outcome.Err != nil {
			_ = job.Fail(fmt.Errorf("segment %d: %w", seg.Index, outcome.Err))
			logger.Error("segment failed", slog.Int("segment", seg.Index), slog.String("error", outcome.Err.Error()))
		} else {
			job.Parts = append(job.Parts, outcome.PartPath)
		}

		o.observer.SegmentDone(newProgress(job, i+1, len(segments), o.now().Sub(start)))

		if !job.OK() {
			break
		}
	}

	if len(job.Parts) > 0 {
		if err := writeManifest(job.PartsDir(), job.Parts); err != nil {
			job.Warn(fmt.Sprintf("write %s: %v", ManifestName, err))
		}
	}

	if !job.OK() || o.final == FinalNone {
		if job.OK() {
			_ = job.Complete()
		}
		return job
	}

	full := job.FullWAVPath()
	if err := audio.ConcatenateFiles(job.Parts, full); err != nil {
		_ = job.Fail(fmt.Errorf("assemble: %w", err))
		return job
	}
	job.FullWAV = full

	if o.final == FinalMP3 {
		o.encode(ctx, job, logger)
	}

	_ = job.Complete()

	return job
}

func (o *Orchestrator) synthesizeSegment(ctx context.Context, job *Job, seg text.Segment) SegmentOutcome {
	started := o.now()
	outcome := SegmentOutcome{Index: seg.Index, Chars: seg.Len()}
	defer func() { outcome.Elapsed = o.now().Sub(started) }()

	if err := ctx.Err(); err != nil {
		outcome.Err = err
		return outcome
	}

	buffers, err := o.engine.Synthesize(ctx, seg.Text, o.voice, o.speed)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	samples := flatten(buffers)
	if len(samples) == 0 {
		outcome.Err = ErrNoAudio
		return outcome
	}

	path := job.PartPath(seg.Index)
	if err := audio.WriteWAVFile(path, samples, o.sampleRate); err != nil {
		outcome.Err = err
		return outcome
	}

	outcome.PartPath = path
	outcome.Samples = len(samples)

	return outcome
}

func (o *Orchestrator) encode(ctx context.Context, job *Job, logger *slog.Logger) {
	if o.encoder == nil {
		job.Warn("no encoder configured; kept WAV only")
		return
	}

	out := job.EncodedPath()
	res, err := o.encoder.Encode(ctx, job.FullWAV, out)
	if res.OK {
		job.Encoded = out
		job.EncoderTool = res.Tool
		return
	}

	msg := "encoder not found; kept WAV only"
	if res.Tool != "" {
		msg = fmt.Sprintf("%s failed; kept WAV only", res.Tool)
	}
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	job.Warn(msg)
	logger.Warn("encoding skipped", slog.String("reason", msg))
}

func flatten(buffers [][]float32) []float32 {
	n := 0
	for _, b := range buffers {
		n += len(b)
	}
	if n == 0 {
		return nil
	}

	out := make([]float32, 0, n)
	for _, b := range buffers {
		out = append(out, b...)
	}

	return out
}

// writeManifest writes an ffmpeg concat list with paths relative to dir.
func writeManifest(dir string, parts []string) error {
	var b strings.Builder
	for _, p := range parts {
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			rel = p
		}
		fmt.Fprintf(&b, "file '%s'\n", filepath.ToSlash(rel))
	}

	return os.WriteFile(filepath.Join(dir, ManifestName), []byte(b.String()), 0o644)
}
