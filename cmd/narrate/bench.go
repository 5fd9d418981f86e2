package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/go-narrate/internal/bench"
	"github.com/example/go-narrate/internal/tts"
)

func newBenchCmd() *cobra.Command {
	var (
		text         string
		in           string
		voice        string
		runs         int
		format       string
		rtfThreshold float64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark engine latency and realtime factor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if in != "" {
				data, err := os.ReadFile(in)
				if err != nil {
					return fmt.Errorf("read --in: %w", err)
				}
				text = string(data)
			}
			if strings.TrimSpace(text) == "" {
				return errors.New("--text or --in is required for bench")
			}
			if format != "table" && format != "json" {
				return errors.New("--format must be 'table' or 'json'")
			}

			logger := slog.Default().With(slog.String("component", "bench"))
			catalog, err := tts.OpenVoiceCatalog(cfg.Paths.Catalog)
			if err != nil {
				return fmt.Errorf("voice catalog: %w", err)
			}
			catalog.SetFallback(cfg.TTS.FallbackVoice, cfg.TTS.FallbackLang)
			choice := catalog.Resolve(firstNonEmpty(voice, cfg.TTS.Voice))

			factory, err := newEngineFactory(cfg.TTS, logger)
			if err != nil {
				return mapEngineError(err)
			}
			registry := tts.NewRegistry(factory)
			defer func() { _ = registry.Close() }()

			engine, err := registry.Get(choice.Lang)
			if err != nil {
				return mapEngineError(err)
			}

			results, err := bench.Run(cmd.Context(), engine, bench.Options{
				Text:       text,
				Voice:      choice.ID,
				Speed:      cfg.TTS.Speed,
				SampleRate: cfg.TTS.SampleRate,
				MaxChars:   cfg.TTS.MaxChars,
				Runs:       runs,
			})
			if err != nil {
				return mapEngineError(err)
			}

			stats := bench.ComputeStats(results)
			out := cmd.OutOrStdout()
			if format == "json" {
				if err := bench.FormatJSON(results, stats, out); err != nil {
					return err
				}
			} else {
				bench.FormatTable(results, stats, out)
			}

			return bench.CheckRTFThreshold(stats.MeanRTF, rtfThreshold)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to synthesize on each run")
	cmd.Flags().StringVar(&in, "in", "", "Read the benchmark text from a file")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice id or alias (default tts.voice)")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of synthesis runs")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().Float64Var(&rtfThreshold, "rtf-threshold", 0, "Fail if mean RTF exceeds this value (0 = disabled)")

	return cmd
}
