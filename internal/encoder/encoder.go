// Package encoder turns an assembled WAV file into a lossy distributable
// artifact using whichever external encoder is installed.
package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

const (
	ToolLame   = "lame"
	ToolFFmpeg = "ffmpeg"
)

// Result reports whether encoding produced an artifact and which tool ran.
// Tool is empty when no encoder was found.
type Result struct {
	OK   bool
	Tool string
}

// Runner executes an external command.
type Runner func(ctx context.Context, name string, args ...string) error

// LookPathFunc resolves an executable name.
type LookPathFunc func(name string) (string, error)

// Encoder prefers lame and falls back to ffmpeg.
type Encoder struct {
	lamePath   string
	ffmpegPath string
	lookPath   LookPathFunc
	run        Runner
	logger     *slog.Logger
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithLame sets the lame executable name or path.
func WithLame(path string) Option {
	return func(e *Encoder) {
		if path != "" {
			e.lamePath = path
		}
	}
}

// WithFFmpeg sets the ffmpeg executable name or path.
func WithFFmpeg(path string) Option {
	return func(e *Encoder) {
		if path != "" {
			e.ffmpegPath = path
		}
	}
}

// WithLookPath replaces executable lookup.
func WithLookPath(fn LookPathFunc) Option {
	return func(e *Encoder) { e.lookPath = fn }
}

// WithRunner replaces command execution.
func WithRunner(fn Runner) Option {
	return func(e *Encoder) { e.run = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Encoder) { e.logger = l }
}

// New returns an Encoder using exec.LookPath and os/exec by default.
func New(opts ...Option) *Encoder {
	e := &Encoder{
		lamePath:   ToolLame,
		ffmpegPath: ToolFFmpeg,
		lookPath:   exec.LookPath,
		run:        runCommand,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}

	return e
}

// Available returns the tool Encode would use, or "" when neither is found.
func (e *Encoder) Available() string {
	tool, _, _ := e.pick()
	return tool
}

// Encode converts wavPath to outPath. When no tool is installed it returns
// Result{} and a nil error without running anything. A failed run returns
// OK=false with the tool name and the run error, which callers treat as a
// warning.
func (e *Encoder) Encode(ctx context.Context, wavPath, outPath string) (Result, error) {
	tool, exe, ok := e.pick()
	if !ok {
		e.logger.Warn("no encoder found", slog.String("lame", e.lamePath), slog.String("ffmpeg", e.ffmpegPath))
		return Result{}, nil
	}

	var args []string
	switch tool {
	case ToolLame:
		args = []string{"--silent", "-V2", wavPath, outPath}
	default:
		args = []string{"-y", "-i", wavPath, "-vn", "-ar", "44100", "-ac", "2", "-b:a", "192k", outPath}
	}

	e.logger.Debug("encoding", slog.String("tool", tool), slog.String("in", wavPath), slog.String("out", outPath))

	if err := e.run(ctx, exe, args...); err != nil {
		return Result{OK: false, Tool: tool}, fmt.Errorf("%s: %w", tool, err)
	}

	return Result{OK: true, Tool: tool}, nil
}

func (e *Encoder) pick() (tool, exe string, ok bool) {
	if p, err := e.lookPath(e.lamePath); err == nil {
		return ToolLame, p, true
	}
	if p, err := e.lookPath(e.ffmpegPath); err == nil {
		return ToolFFmpeg, p, true
	}

	return "", "", false
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("%w: %s", err, msg)
			}
		}
		return err
	}

	return nil
}
