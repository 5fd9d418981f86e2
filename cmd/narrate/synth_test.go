package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/example/go-narrate/internal/batch"
	"github.com/example/go-narrate/internal/config"
)

func TestSynth_DirectoryWritesArtifactsAndSummary(t *testing.T) {
	calls := stubFactory(t, toneEngine())

	in := t.TempDir()
	writeText(t, in, "chapter-one.txt", "It was a bright cold day. The clocks were striking.")
	writeText(t, in, "chapter-two.txt", "Call me Ishmael.")
	out := t.TempDir()
	summaryPath := filepath.Join(t.TempDir(), "reports", "summary.json")

	stdout, _, err := runCLI(t, "synth", "--in", in, "--out", out, "--final", "wav",
		"--progress", "none", "--summary-json", summaryPath)
	if err != nil {
		t.Fatalf("synth returned error: %v", err)
	}
	if !strings.Contains(stdout, "Done. OK: 2  Failed: 0") {
		t.Fatalf("unexpected stdout: %q", stdout)
	}
	if calls.count() != 2 {
		t.Errorf("engine calls = %d, want 2", calls.count())
	}

	for _, base := range []string{"chapter-one", "chapter-two"} {
		mustExist(t, filepath.Join(out, base, "parts", base+"-part-0001.wav"))
		mustExist(t, filepath.Join(out, base, base+"-full.wav"))
	}

	data, err := os.ReadFile(summaryPath)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	var summary struct {
		Voice  string `json:"voice"`
		Totals struct {
			OK     int `json:"ok"`
			Failed int `json:"failed"`
		} `json:"totals"`
		Inputs []struct {
			Base   string `json:"base"`
			Status string `json:"status"`
		} `json:"inputs"`
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Totals.OK != 2 || summary.Totals.Failed != 0 {
		t.Errorf("unexpected totals: %+v", summary.Totals)
	}
	if summary.Voice != "af_heart" {
		t.Errorf("voice = %q, want af_heart", summary.Voice)
	}
	if len(summary.Inputs) != 2 || summary.Inputs[0].Base != "chapter-one" || summary.Inputs[1].Status != "ok" {
		t.Errorf("unexpected inputs: %+v", summary.Inputs)
	}
}

func TestSynth_SingleFileBaseOverride(t *testing.T) {
	stubFactory(t, toneEngine())

	in := writeText(t, t.TempDir(), "draft.txt", "Short text.")
	out := t.TempDir()

	if _, _, err := runCLI(t, "synth", "--in", in, "--out", out, "--base", "My Book", "--final", "wav", "--progress", "none"); err != nil {
		t.Fatalf("synth returned error: %v", err)
	}
	mustExist(t, filepath.Join(out, "my-book", "my-book-full.wav"))
}

func TestSynth_MissingInputExitsTwo(t *testing.T) {
	stubFactory(t, toneEngine())

	_, _, err := runCLI(t, "synth", "--in", filepath.Join(t.TempDir(), "nope.txt"))
	var ee *exitError
	if !errors.As(err, &ee) {
		t.Fatalf("expected exitError, got %v", err)
	}
	if ee.code != 2 {
		t.Errorf("exit code = %d, want 2", ee.code)
	}
}

func TestSynth_EmptyDirectoryExitsTwo(t *testing.T) {
	stubFactory(t, toneEngine())

	dir := t.TempDir()
	writeText(t, dir, "notes.md", "Not a text input.")

	_, _, err := runCLI(t, "synth", "--in", dir)
	var ee *exitError
	if !errors.As(err, &ee) || ee.code != 2 {
		t.Fatalf("expected exit code 2, got %v", err)
	}
	if !errors.Is(err, batch.ErrNoInputs) {
		t.Errorf("expected ErrNoInputs, got %v", err)
	}
}

func TestSynth_FailedJobExitsOne(t *testing.T) {
	stubFactory(t, func(context.Context, string, string, float64) ([][]float32, error) {
		return nil, errors.New("engine exploded")
	})

	in := writeText(t, t.TempDir(), "a.txt", "Hello.")
	out := t.TempDir()

	stdout, stderr, err := runCLI(t, "synth", "--in", in, "--out", out, "--final", "wav", "--progress", "none")
	var ee *exitError
	if !errors.As(err, &ee) || ee.code != 1 {
		t.Fatalf("expected exit code 1, got %v", err)
	}
	if !strings.Contains(stdout, "Done. OK: 0  Failed: 1") {
		t.Errorf("unexpected stdout: %q", stdout)
	}
	if !strings.Contains(stderr, "engine exploded") {
		t.Errorf("stderr does not report the job error: %q", stderr)
	}
}

func TestSynth_DryRunSkipsEngine(t *testing.T) {
	orig := newEngineFactory
	t.Cleanup(func() { newEngineFactory = orig })
	newEngineFactory = nil

	in := t.TempDir()
	p := writeText(t, in, "long.txt", strings.Repeat("This sentence has some words in it. ", 40))

	stdout, _, err := runCLI(t, "synth", "--in", in, "--dry-run", "--max", "400")
	if err != nil {
		t.Fatalf("dry run returned error: %v", err)
	}
	want := fmt.Sprintf("- %s -> ", p)
	if !strings.HasPrefix(stdout, want) || !strings.Contains(stdout, "chunks (max=400)") {
		t.Fatalf("unexpected dry run output: %q", stdout)
	}
}

func TestSynth_InvalidFinal(t *testing.T) {
	stubFactory(t, toneEngine())
	in := writeText(t, t.TempDir(), "a.txt", "Hello.")

	_, _, err := runCLI(t, "synth", "--in", in, "--final", "flac")
	if err == nil {
		t.Fatal("expected error for --final flac")
	}
}

type fakePublisher struct {
	mu     sync.Mutex
	paths  []string
	closed bool
}

func (p *fakePublisher) Publish(_ context.Context, path string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, path)
	return "run/" + filepath.Base(path), nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func TestSynth_PublishUploadsArtifacts(t *testing.T) {
	stubFactory(t, toneEngine())

	pub := &fakePublisher{}
	var gotCfg config.PublishConfig
	orig := newPublisher
	t.Cleanup(func() { newPublisher = orig })
	newPublisher = func(cfg config.PublishConfig) (artifactPublisher, error) {
		gotCfg = cfg
		return pub, nil
	}

	in := writeText(t, t.TempDir(), "a.txt", "Hello.")
	out := t.TempDir()

	_, _, err := runCLI(t, "synth", "--in", in, "--out", out, "--final", "wav", "--progress", "none",
		"--publish", "--publish-bucket", "books")
	if err != nil {
		t.Fatalf("synth returned error: %v", err)
	}
	if gotCfg.Bucket != "books" {
		t.Errorf("bucket = %q, want books", gotCfg.Bucket)
	}
	if len(pub.paths) != 1 || filepath.Base(pub.paths[0]) != "a-full.wav" {
		t.Errorf("unexpected published paths: %v", pub.paths)
	}
	if !pub.closed {
		t.Error("publisher was not closed")
	}
}

func TestSynth_PublishConnectFailure(t *testing.T) {
	stubFactory(t, toneEngine())

	orig := newPublisher
	t.Cleanup(func() { newPublisher = orig })
	newPublisher = func(config.PublishConfig) (artifactPublisher, error) {
		return nil, errors.New("no servers available")
	}

	in := writeText(t, t.TempDir(), "a.txt", "Hello.")
	_, _, err := runCLI(t, "synth", "--in", in, "--out", t.TempDir(), "--publish")
	if err == nil || !strings.Contains(err.Error(), "publish: no servers available") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSynth_PocketPreflightFailure(t *testing.T) {
	stubFactory(t, toneEngine())

	orig := pocketPreflight
	t.Cleanup(func() { pocketPreflight = orig })
	pocketPreflight = func(string) error {
		return fmt.Errorf("locate pocket-tts: %w", exec.ErrNotFound)
	}

	in := writeText(t, t.TempDir(), "a.txt", "Hello.")
	_, _, err := runCLI(t, "synth", "--in", in, "--out", t.TempDir(), "--engine", "pockettts")
	if err == nil || !strings.Contains(err.Error(), "pocket-tts preflight") || !errors.Is(err, exec.ErrNotFound) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMapEngineError(t *testing.T) {
	plain := errors.New("boom")
	if got := mapEngineError(plain); got != plain {
		t.Errorf("unrelated error was rewritten: %v", got)
	}

	wrapped := fmt.Errorf("start engine: %w", exec.ErrNotFound)
	got := mapEngineError(wrapped)
	if !errors.Is(got, exec.ErrNotFound) || !strings.Contains(got.Error(), "NARRATE_TTS_EXEC_COMMAND") {
		t.Errorf("unexpected mapping: %v", got)
	}
}

func TestUseProgress(t *testing.T) {
	orig := stderrIsTerminal
	t.Cleanup(func() { stderrIsTerminal = orig; quiet = false })
	t.Setenv("GITHUB_ACTIONS", "")

	tty := true
	stderrIsTerminal = func() bool { return tty }

	tests := []struct {
		name  string
		mode  string
		tty   bool
		quiet bool
		ci    string
		want  bool
	}{
		{name: "simple always prints", mode: "simple", want: true},
		{name: "none never prints", mode: "none", tty: true},
		{name: "auto on terminal", mode: "auto", tty: true, want: true},
		{name: "auto without terminal", mode: "auto"},
		{name: "auto quiet", mode: "auto", tty: true, quiet: true},
		{name: "auto in CI", mode: "auto", tty: true, ci: "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tty, quiet = tt.tty, tt.quiet
			t.Setenv("GITHUB_ACTIONS", tt.ci)
			if got := useProgress(tt.mode); got != tt.want {
				t.Errorf("useProgress(%q) = %v, want %v", tt.mode, got, tt.want)
			}
		})
	}
}

func TestFirstHelpers(t *testing.T) {
	if got := firstNonEmpty("", "  ", "b", "c"); got != "b" {
		t.Errorf("firstNonEmpty = %q", got)
	}
	if got := firstPositive(0, -1, 3); got != 3 {
		t.Errorf("firstPositive = %d", got)
	}
	if got := firstPositive(0.0, 1.25); got != 1.25 {
		t.Errorf("firstPositive = %v", got)
	}
}
