package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	pockettts "github.com/MeKo-Christian/go-call-pocket-tts"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/example/go-narrate/internal/batch"
	"github.com/example/go-narrate/internal/config"
	"github.com/example/go-narrate/internal/encoder"
	"github.com/example/go-narrate/internal/objectstore"
	"github.com/example/go-narrate/internal/pipeline"
	"github.com/example/go-narrate/internal/telemetry"
	"github.com/example/go-narrate/internal/tts"
)

const (
	progressAuto   = "auto"
	progressSimple = "simple"
	progressNone   = "none"
)

type synthFlags struct {
	in          string
	out         string
	base        string
	voice       string
	speed       float64
	rate        int
	maxChars    int
	final       string
	recursive   bool
	summaryJSON string
	dryRun      bool
	progress    string
	parallel    int
	publish     bool
}

var _ batch.RunScoped = (*objectstore.Publisher)(nil)

// artifactPublisher is a batch.Publisher holding a connection.
type artifactPublisher interface {
	batch.Publisher
	io.Closer
}

// Seams replaced in tests.
var (
	newEngineFactory = tts.NewFactory
	newPublisher     = func(cfg config.PublishConfig) (artifactPublisher, error) {
		p, err := objectstore.Connect(cfg.NATSURL, cfg.Bucket)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	pocketPreflight  = tts.PocketPreflight
	stderrIsTerminal = func() bool {
		fd := os.Stderr.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
)

func newSynthCmd() *cobra.Command {
	var f synthFlags

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize a text file or a directory of .txt files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			return runSynth(cmd.Context(), cfg, f, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&f.in, "in", "", "Input .txt file or directory (required)")
	cmd.Flags().StringVar(&f.out, "out", "", "Output root directory (default paths.out_dir)")
	cmd.Flags().StringVar(&f.base, "base", "", "Output base name; only applies to a single input")
	cmd.Flags().StringVar(&f.voice, "voice", "", "Voice id or alias (default tts.voice)")
	cmd.Flags().Float64Var(&f.speed, "speed", 0, "Speech speed multiplier (default tts.speed)")
	cmd.Flags().IntVar(&f.rate, "rate", 0, "Sample rate in Hz (default tts.sample_rate)")
	cmd.Flags().IntVar(&f.maxChars, "max", 0, "Characters per segment, minimum 400 (default tts.max_chars)")
	cmd.Flags().StringVar(&f.final, "final", string(pipeline.FinalMP3), "Final artifact (mp3|wav|none)")
	cmd.Flags().BoolVar(&f.recursive, "recursive", false, "Descend into subdirectories of --in")
	cmd.Flags().StringVar(&f.summaryJSON, "summary-json", "", "Write a JSON run summary to this path")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Only report segment counts")
	cmd.Flags().StringVar(&f.progress, "progress", progressAuto, "Progress output (auto|simple|none)")
	cmd.Flags().IntVar(&f.parallel, "parallel", 1, "Number of inputs synthesized concurrently")
	cmd.Flags().BoolVar(&f.publish, "publish", false, "Upload finished artifacts to the NATS object store")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}

func runSynth(ctx context.Context, cfg config.Config, f synthFlags, stdout, stderr io.Writer) error {
	logger := slog.Default().With(slog.String("component", "synth"))

	inputs, err := batch.CollectInputs(f.in, f.recursive)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &exitError{code: 2, err: fmt.Errorf("input not found: %s", f.in)}
		}
		if errors.Is(err, batch.ErrNoInputs) {
			return &exitError{code: 2, err: err}
		}
		return err
	}

	final, err := pipeline.ParseFinalFormat(f.final)
	if err != nil {
		return err
	}

	catalog, err := tts.OpenVoiceCatalog(cfg.Paths.Catalog)
	if err != nil {
		return fmt.Errorf("voice catalog: %w", err)
	}
	catalog.SetFallback(cfg.TTS.FallbackVoice, cfg.TTS.FallbackLang)

	requested := firstNonEmpty(f.voice, cfg.TTS.Voice)
	voice := catalog.Resolve(requested)
	if voice.Fallback {
		logger.Warn("unknown voice, using fallback",
			slog.String("requested", requested), slog.String("voice", voice.ID))
	}

	maxChars := firstPositive(f.maxChars, cfg.TTS.MaxChars)
	opts := []batch.Option{
		batch.WithVoice(voice),
		batch.WithEngineName(cfg.TTS.Engine),
		batch.WithOutDir(firstNonEmpty(f.out, cfg.Paths.OutDir)),
		batch.WithBase(f.base),
		batch.WithSpeed(firstPositive(f.speed, cfg.TTS.Speed)),
		batch.WithSampleRate(firstPositive(f.rate, cfg.TTS.SampleRate)),
		batch.WithMaxChars(maxChars),
		batch.WithFinal(final),
		batch.WithParallel(f.parallel),
		batch.WithLogger(logger),
	}

	if f.dryRun {
		plans, err := batch.NewDriver(nil, opts...).DryRun(inputs)
		for _, p := range plans {
			_, _ = fmt.Fprintf(stdout, "- %s -> %d chunks (max=%d)\n", p.Input, p.Segments, p.MaxChars)
		}
		return err
	}

	engine, err := config.NormalizeEngine(cfg.TTS.Engine)
	if err != nil {
		return err
	}
	if engine == config.EnginePocketTTS {
		if err := pocketPreflight(cfg.TTS.PocketCLIPath); err != nil {
			return fmt.Errorf("pocket-tts preflight: %w", mapEngineError(err))
		}
	}

	factory, err := newEngineFactory(cfg.TTS, logger)
	if err != nil {
		return mapEngineError(err)
	}

	provider, err := telemetry.Setup(ctx, cfg.Telemetry, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()
	metrics, err := telemetry.NewMetrics(provider.Meter())
	if err != nil {
		return err
	}
	factory = telemetry.TraceFactory(factory, provider.Tracer(), engine)

	annotator := batch.NewAnnotator(stderr, os.Getenv, quiet)
	observers := pipeline.MultiObserver{annotator, pipeline.LogObserver{Logger: logger}, metrics}
	if useProgress(f.progress) {
		observers = append(observers, pipeline.TextProgress{W: stderr})
	}
	opts = append(opts, batch.WithObserver(observers))

	if final == pipeline.FinalMP3 {
		opts = append(opts, batch.WithEncoder(encoder.New(
			encoder.WithLame(cfg.Encoder.LamePath),
			encoder.WithFFmpeg(cfg.Encoder.FFmpegPath),
			encoder.WithLogger(logger),
		)))
	}

	if f.publish {
		pub, err := newPublisher(cfg.Publish)
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		defer func() { _ = pub.Close() }()
		opts = append(opts, batch.WithPublisher(pub))
	}

	summary, err := batch.NewDriver(factory, opts...).Run(ctx, inputs)
	if err != nil {
		return mapEngineError(err)
	}

	if f.summaryJSON != "" {
		if err := summary.WriteJSON(f.summaryJSON); err != nil {
			annotator.Warning("summary not written: %v", err)
		}
	}

	_, _ = fmt.Fprintf(stdout, "Done. OK: %d  Failed: %d\n", summary.Totals.OK, summary.Totals.Failed)
	if summary.Failed() {
		return &exitError{code: 1, err: fmt.Errorf("%d of %d jobs failed", summary.Totals.Failed, len(inputs))}
	}

	return nil
}

// useProgress reports whether per-segment progress lines are printed.
// auto prints them only to an interactive terminal outside CI.
func useProgress(mode string) bool {
	switch strings.ToLower(mode) {
	case progressSimple:
		return true
	case progressNone:
		return false
	default:
		return !quiet && os.Getenv("GITHUB_ACTIONS") != "true" && stderrIsTerminal()
	}
}

func mapEngineError(err error) error {
	var notFound *pockettts.ErrExecutableNotFound
	if errors.As(err, &notFound) {
		return fmt.Errorf("synth failed: pocket-tts executable not found; set --tts-pocket-cli-path or NARRATE_TTS_POCKET_CLI_PATH: %w", err)
	}

	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("synth failed: engine executable not found; set --tts-exec-command or NARRATE_TTS_EXEC_COMMAND: %w", err)
	}

	return err
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstPositive[T int | float64](vals ...T) T {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
