package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/example/go-narrate/internal/config"
	"github.com/example/go-narrate/internal/tts"
)

// runCLI executes the root command in an empty working directory so no
// narrate.yaml is discovered.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	orig := slog.Default()
	t.Cleanup(func() { slog.SetDefault(orig) })

	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())

	return stdout.String(), stderr.String(), err
}

type engineCalls struct {
	mu    sync.Mutex
	texts []string
}

func (c *engineCalls) add(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, s)
}

func (c *engineCalls) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.texts)
}

// stubFactory replaces the engine factory with fn for the test.
func stubFactory(t *testing.T, fn tts.EngineFunc) *engineCalls {
	t.Helper()
	calls := &engineCalls{}
	orig := newEngineFactory
	t.Cleanup(func() { newEngineFactory = orig })

	newEngineFactory = func(config.TTSConfig, *slog.Logger) (tts.Factory, error) {
		return func(string) (tts.Engine, error) {
			return tts.EngineFunc(func(ctx context.Context, text, voice string, speed float64) ([][]float32, error) {
				calls.add(text)
				return fn(ctx, text, voice, speed)
			}), nil
		}, nil
	}
	return calls
}

func toneEngine() tts.EngineFunc {
	return func(context.Context, string, string, float64) ([][]float32, error) {
		return [][]float32{make([]float32, 2400)}, nil
	}
}

func writeText(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func mustExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}

func containsAll(t *testing.T, got string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(got, w) {
			t.Errorf("output missing %q:\n%s", w, got)
		}
	}
}
