// Package doctor provides environment preflight checks for narrate.
package doctor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/example/go-narrate/internal/tts"
)

// PassMark, WarnMark and FailMark are the prefix symbols printed for each
// check result.
const (
	PassMark = "✓"
	WarnMark = "!"
	FailMark = "✗"
)

// ProbeFunc checks a component and returns a short description of what was
// found, or an error if it is unusable.
type ProbeFunc func() (string, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// Engine is the configured backend name, printed with the probe result.
	Engine string
	// EngineProbe verifies that the backend can be reached or launched.
	EngineProbe ProbeFunc
	// Encoders lists the mp3 encoder executables in preference order.
	Encoders []string
	// LookPath resolves encoder executables. Defaults to exec.LookPath.
	LookPath func(string) (string, error)
	// CatalogPath is the voice catalog file. A missing file is not a failure.
	CatalogPath string
	// OutDir must be creatable and writable.
	OutDir string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
	warnings []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// Warnings returns the checks that passed with reduced functionality.
func (r *Result) Warnings() []string { return append([]string(nil), r.warnings...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) warn(msg string) { r.warnings = append(r.warnings, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark, WarnMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- engine -----------------------------------------------------------
	if cfg.EngineProbe == nil {
		fmt.Fprintf(w, "%s engine %s: skipped\n", PassMark, cfg.Engine)
	} else if desc, err := cfg.EngineProbe(); err != nil {
		res.fail(fmt.Sprintf("engine %s: %v", cfg.Engine, err))
		fmt.Fprintf(w, "%s engine %s: %v\n", FailMark, cfg.Engine, err)
	} else {
		fmt.Fprintf(w, "%s engine %s: %s\n", PassMark, cfg.Engine, desc)
	}

	// ---- mp3 encoders -----------------------------------------------------
	checkEncoders(cfg, w, &res)

	// ---- voice catalog ----------------------------------------------------
	checkCatalog(cfg.CatalogPath, w, &res)

	// ---- output directory -------------------------------------------------
	if cfg.OutDir != "" {
		if err := checkWritable(cfg.OutDir); err != nil {
			res.fail(fmt.Sprintf("output dir %q: %v", cfg.OutDir, err))
			fmt.Fprintf(w, "%s output dir %s: %v\n", FailMark, cfg.OutDir, err)
		} else {
			fmt.Fprintf(w, "%s output dir: %s\n", PassMark, cfg.OutDir)
		}
	}

	return res
}

func checkEncoders(cfg Config, w io.Writer, res *Result) {
	if len(cfg.Encoders) == 0 {
		return
	}
	lookPath := cfg.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	var found []string
	for _, name := range cfg.Encoders {
		if path, err := lookPath(name); err == nil {
			found = append(found, path)
		}
	}
	if len(found) == 0 {
		msg := fmt.Sprintf("no mp3 encoder found (%s); final output is WAV only", strings.Join(cfg.Encoders, ", "))
		res.warn(msg)
		fmt.Fprintf(w, "%s %s\n", WarnMark, msg)
		return
	}
	fmt.Fprintf(w, "%s mp3 encoder: %s\n", PassMark, strings.Join(found, ", "))
}

func checkCatalog(path string, w io.Writer, res *Result) {
	if path == "" {
		fmt.Fprintf(w, "%s voice catalog: built-in (%d voices)\n", PassMark, len(tts.DefaultVoices().ListVoices()))
		return
	}

	catalog, err := tts.LoadVoiceCatalog(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Fprintf(w, "%s voice catalog %s: missing, using built-in (%d voices)\n",
			PassMark, path, len(tts.DefaultVoices().ListVoices()))
	case err != nil:
		res.fail(fmt.Sprintf("voice catalog %q: %v", path, err))
		fmt.Fprintf(w, "%s voice catalog %s: %v\n", FailMark, path, err)
	default:
		fmt.Fprintf(w, "%s voice catalog %s: %d voices, %d aliases\n",
			PassMark, path, len(catalog.ListVoices()), len(catalog.AliasNames()))
	}
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}
