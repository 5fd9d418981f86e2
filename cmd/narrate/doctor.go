package main

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-narrate/internal/config"
	"github.com/example/go-narrate/internal/doctor"
	"github.com/example/go-narrate/internal/tts"
)

var lookPath = exec.LookPath

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check engine, encoders, voice catalog and output directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			engine, err := config.NormalizeEngine(cfg.TTS.Engine)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			result := doctor.Run(doctor.Config{
				Engine:      engine,
				EngineProbe: engineProbe(cmd.Context(), engine, cfg.TTS),
				Encoders:    []string{cfg.Encoder.LamePath, cfg.Encoder.FFmpegPath},
				LookPath:    lookPath,
				CatalogPath: cfg.Paths.Catalog,
				OutDir:      cfg.Paths.OutDir,
			}, out)

			if result.Failed() {
				for _, f := range result.Failures() {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}
				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")
			return nil
		},
	}
}

// engineProbe builds the reachability check for the configured backend.
func engineProbe(ctx context.Context, engine string, cfg config.TTSConfig) doctor.ProbeFunc {
	switch engine {
	case config.EngineExec:
		return func() (string, error) {
			args, err := tts.ParseCommand(cfg.ExecCommand)
			if err != nil {
				return "", err
			}
			path, err := lookPath(args[0])
			if err != nil {
				return "", err
			}
			return path, nil
		}
	case config.EnginePocketTTS:
		return func() (string, error) {
			if err := pocketPreflight(cfg.PocketCLIPath); err != nil {
				return "", fmt.Errorf("pocket-tts preflight: %w", mapEngineError(err))
			}
			return "pocket-tts available", nil
		}
	case config.EngineRemote:
		return func() (string, error) {
			if cfg.RemoteAddr == "" {
				return "", errors.New("tts.remote_addr is not set")
			}
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			n, err := probeGRPC(ctx, cfg.RemoteAddr, cfg.RemoteInsecure)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s serves %d voices", cfg.RemoteAddr, n), nil
		}
	default:
		return nil
	}
}
