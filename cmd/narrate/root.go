package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/go-narrate/internal/config"
)

var (
	cfgFile   string
	verbose   bool
	quiet     bool
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "narrate",
		Short:         "Turn long-form text into narrated audio",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = loaded
			setupLogger(loaded.LogLevel, loaded.LogFormat)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only warnings and errors")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newSynthCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVoicesCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newBenchCmd())

	return cmd
}

// setupLogger configures the process-wide slog default logger. --quiet and
// --verbose take precedence over the configured level.
func setupLogger(levelStr, format string) {
	lvl, err := config.ParseLogLevel(levelStr)
	if err != nil {
		lvl = slog.LevelInfo
	}
	switch {
	case verbose:
		lvl = slog.LevelDebug
	case quiet:
		lvl = slog.LevelWarn
	}
	slog.SetDefault(config.NewLogger(os.Stderr, lvl, format))
}

func requireConfig() (config.Config, error) {
	if activeCfg.TTS.Engine == "" {
		return config.Config{}, errors.New("configuration not loaded")
	}
	return activeCfg, nil
}
