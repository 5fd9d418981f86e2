// Package batch runs the synthesis pipeline over a set of input documents,
// isolating per-document failures and collecting a run summary.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/example/go-narrate/internal/audio"
	"github.com/example/go-narrate/internal/pipeline"
	"github.com/example/go-narrate/internal/text"
	"github.com/example/go-narrate/internal/tts"
)

// Publisher uploads a finished artifact and returns its object name.
type Publisher interface {
	Publish(ctx context.Context, path string) (string, error)
}

// RunScoped is implemented by publishers that key a run's objects under one
// prefix. The summary adopts that prefix as its run id.
type RunScoped interface {
	Prefix() string
}

// Driver processes inputs with up to Parallel concurrent jobs. Every worker
// owns its own engine; segments within a job are always sequential.
type Driver struct {
	factory    tts.Factory
	engineName string
	voice      tts.VoiceChoice
	outDir     string
	base       string
	speed      float64
	sampleRate int
	maxChars   int
	final      pipeline.FinalFormat
	encoder    pipeline.Encoder
	observer   pipeline.Observer
	parallel   int
	publisher  Publisher
	logger     *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

func WithVoice(v tts.VoiceChoice) Option { return func(d *Driver) { d.voice = v } }

// WithEngineName is recorded in the summary.
func WithEngineName(name string) Option { return func(d *Driver) { d.engineName = name } }

func WithOutDir(dir string) Option { return func(d *Driver) { d.outDir = dir } }

// WithBase overrides the output base name when the run has exactly one input.
func WithBase(base string) Option { return func(d *Driver) { d.base = base } }

func WithSpeed(speed float64) Option { return func(d *Driver) { d.speed = speed } }

func WithSampleRate(rate int) Option { return func(d *Driver) { d.sampleRate = rate } }

func WithMaxChars(n int) Option { return func(d *Driver) { d.maxChars = n } }

func WithFinal(f pipeline.FinalFormat) Option { return func(d *Driver) { d.final = f } }

func WithEncoder(e pipeline.Encoder) Option { return func(d *Driver) { d.encoder = e } }

func WithObserver(o pipeline.Observer) Option {
	return func(d *Driver) {
		if o != nil {
			d.observer = o
		}
	}
}

func WithParallel(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.parallel = n
		}
	}
}

func WithPublisher(p Publisher) Option { return func(d *Driver) { d.publisher = p } }

func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

func NewDriver(factory tts.Factory, opts ...Option) *Driver {
	d := &Driver{
		factory:    factory,
		voice:      tts.VoiceChoice{ID: tts.DefaultFallbackVoice, Lang: tts.DefaultFallbackLang},
		outDir:     "out",
		speed:      1.0,
		sampleRate: audio.DefaultSampleRate,
		maxChars:   text.DefaultBudget,
		final:      pipeline.FinalMP3,
		observer:   pipeline.NopObserver{},
		parallel:   1,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Run processes every input. A failing job never aborts the run; only
// engine creation errors and an empty input list are returned as errors.
func (d *Driver) Run(ctx context.Context, inputs []string) (*Summary, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}

	workers := min(d.parallel, len(inputs))
	pool := make(chan tts.Engine, workers)
	registries := make([]*tts.Registry, 0, workers)
	defer func() {
		for _, r := range registries {
			if err := r.Close(); err != nil {
				d.logger.Warn("close engine", slog.String("error", err.Error()))
			}
		}
	}()

	for range workers {
		reg := tts.NewRegistry(d.factory)
		registries = append(registries, reg)
		eng, err := reg.Get(d.voice.Lang)
		if err != nil {
			return nil, fmt.Errorf("create engine: %w", err)
		}
		pool <- eng
	}

	summary := newSummary(len(inputs))
	if rs, ok := d.publisher.(RunScoped); ok && rs.Prefix() != "" {
		summary.RunID = rs.Prefix()
	}
	summary.Engine = d.engineName
	summary.Voice = d.voice.ID
	summary.Lang = d.voice.Lang
	summary.Rate = d.sampleRate
	summary.Speed = d.speed
	summary.MaxChars = text.EffectiveBudget(d.maxChars)
	summary.Final = string(d.final)

	d.logger.Info("batch started",
		slog.String("run_id", summary.RunID),
		slog.Int("inputs", len(inputs)),
		slog.Int("workers", workers),
	)

	var g errgroup.Group
	g.SetLimit(workers)
	single := len(inputs) == 1

	for i, input := range inputs {
		g.Go(func() error {
			eng := <-pool
			defer func() { pool <- eng }()

			job, published := d.runJob(ctx, eng, input, single)
			rec := newRecord(job)
			rec.Published = published
			summary.set(i, rec, job.EncoderTool)

			return nil
		})
	}
	_ = g.Wait()

	d.logger.Info("batch finished",
		slog.String("run_id", summary.RunID),
		slog.Int("ok", summary.Totals.OK),
		slog.Int("failed", summary.Totals.Failed),
	)

	return summary, nil
}

func (d *Driver) baseFor(input string, single bool) string {
	if single && d.base != "" {
		if b := text.Slugify(d.base); b != "" {
			return b
		}
	}
	return text.BaseName(input)
}

func (d *Driver) runJob(ctx context.Context, eng tts.Engine, input string, single bool) (*pipeline.Job, []string) {
	base := d.baseFor(input, single)
	job := pipeline.NewJob(input, base, filepath.Join(d.outDir, base))

	body, err := readInput(input)
	if err != nil {
		_ = job.Fail(err)
		d.observer.JobDone(job)
		return job, nil
	}

	segments := text.SplitSegments(body, text.EffectiveBudget(d.maxChars))
	d.logger.Debug("segmented input",
		slog.String("input", input),
		slog.Int("segments", len(segments)),
		slog.Int("max_chars", text.EffectiveBudget(d.maxChars)),
	)

	orch := pipeline.New(eng,
		pipeline.WithVoice(d.voice.ID),
		pipeline.WithSpeed(d.speed),
		pipeline.WithSampleRate(d.sampleRate),
		pipeline.WithFinal(d.final),
		pipeline.WithEncoder(d.encoder),
		pipeline.WithObserver(d.observer),
		pipeline.WithLogger(d.logger),
	)
	job = orch.Run(ctx, job, segments)

	if !job.OK() || d.publisher == nil {
		return job, nil
	}

	return job, d.publish(ctx, job)
}

func (d *Driver) publish(ctx context.Context, job *pipeline.Job) []string {
	var names []string
	for _, path := range []string{job.FullWAV, job.Encoded} {
		if path == "" {
			continue
		}
		name, err := d.publisher.Publish(ctx, path)
		if err != nil {
			job.Warn(fmt.Sprintf("publish %s: %v", filepath.Base(path), err))
			continue
		}
		names = append(names, name)
	}

	return names
}

// Plan is the dry-run outcome for one input.
type Plan struct {
	Input    string
	Segments int
	MaxChars int
}

// DryRun segments every input without touching the engine.
func (d *Driver) DryRun(inputs []string) ([]Plan, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}

	plans := make([]Plan, 0, len(inputs))
	var errs []error
	for _, input := range inputs {
		body, err := readInput(input)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", input, err))
			continue
		}
		segments := text.SplitSegments(body, text.EffectiveBudget(d.maxChars))
		plans = append(plans, Plan{Input: input, Segments: len(segments), MaxChars: text.EffectiveBudget(d.maxChars)})
	}

	return plans, errors.Join(errs...)
}

// readInput loads and normalizes one input file. Blank files yield
// text.ErrEmptyText.
func readInput(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return text.Normalize(string(data))
}
