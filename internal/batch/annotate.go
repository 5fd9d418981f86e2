package batch

import (
	"fmt"
	"io"
	"sync"

	"github.com/example/go-narrate/internal/pipeline"
)

// Annotator prints user-facing result lines. Under GitHub Actions the lines
// become workflow commands (::notice::, ::warning::, ::error::).
type Annotator struct {
	w     io.Writer
	ci    bool
	quiet bool
	mu    sync.Mutex
}

// NewAnnotator enables CI mode when GITHUB_ACTIONS=true according to getenv.
func NewAnnotator(w io.Writer, getenv func(string) string, quiet bool) *Annotator {
	return &Annotator{w: w, ci: getenv("GITHUB_ACTIONS") == "true", quiet: quiet}
}

// Notice is suppressed in quiet mode.
func (a *Annotator) Notice(format string, args ...any) {
	if a.quiet {
		return
	}
	a.emit("::notice::", "", fmt.Sprintf(format, args...))
}

func (a *Annotator) Warning(format string, args ...any) {
	a.emit("::warning::", "WARNING: ", fmt.Sprintf(format, args...))
}

func (a *Annotator) Error(format string, args ...any) {
	a.emit("::error::", "ERROR: ", fmt.Sprintf(format, args...))
}

func (a *Annotator) emit(ciPrefix, plainPrefix, msg string) {
	prefix := plainPrefix
	if a.ci {
		prefix = ciPrefix
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_, _ = fmt.Fprintf(a.w, "%s%s\n", prefix, msg)
}

// SegmentDone is a no-op; progress lines are printed by pipeline.TextProgress.
func (a *Annotator) SegmentDone(pipeline.Progress) {}

// JobDone reports the artifacts or the failure of a finished job.
func (a *Annotator) JobDone(j *pipeline.Job) {
	if !j.OK() {
		a.Error("%s: %v", j.Input, j.Err)
		return
	}
	for _, w := range j.Warnings {
		a.Warning("%s: %s", j.Input, w)
	}
	if j.FullWAV != "" {
		a.Notice("[WAV] %s", j.FullWAV)
	}
	if j.Encoded != "" {
		a.Notice("[MP3] %s (via %s)", j.Encoded, j.EncoderTool)
	}
}
