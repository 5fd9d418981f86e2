package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// State is the lifecycle position of a Job.
type State int

const (
	Pending State = iota
	InProgress
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InProgress:
		return "in_progress"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrInvalidTransition is returned when a Job is moved out of a terminal
// state or started twice.
var ErrInvalidTransition = errors.New("invalid job state transition")

// FinalFormat selects what is produced after all segments succeed.
type FinalFormat string

const (
	FinalMP3  FinalFormat = "mp3"
	FinalWAV  FinalFormat = "wav"
	FinalNone FinalFormat = "none"
)

// ParseFinalFormat validates a --final value.
func ParseFinalFormat(s string) (FinalFormat, error) {
	switch f := FinalFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FinalMP3, FinalWAV, FinalNone:
		return f, nil
	case "":
		return FinalMP3, nil
	default:
		return "", fmt.Errorf("invalid final format %q (expected mp3|wav|none)", s)
	}
}

// SegmentOutcome records what happened to one segment.
type SegmentOutcome struct {
	Index    int
	Chars    int
	PartPath string
	Samples  int
	Elapsed  time.Duration
	Err      error
}

// Job tracks the synthesis of one input document.
type Job struct {
	Input string
	Base  string
	Root  string

	State       State
	Segments    []SegmentOutcome
	Parts       []string
	FullWAV     string
	Encoded     string
	EncoderTool string
	Warnings    []string
	Err         error
	Elapsed     time.Duration

	started time.Time
}

// NewJob returns a pending job writing under root.
func NewJob(input, base, root string) *Job {
	return &Job{Input: input, Base: base, Root: root, State: Pending}
}

// PartsDir is where per-segment containers are written.
func (j *Job) PartsDir() string { return filepath.Join(j.Root, "parts") }

// PartPath returns the container path for a 1-based segment index.
func (j *Job) PartPath(index int) string {
	return filepath.Join(j.PartsDir(), fmt.Sprintf("%s-part-%04d.wav", j.Base, index))
}

// FullWAVPath is the assembled container path.
func (j *Job) FullWAVPath() string { return filepath.Join(j.Root, j.Base+"-full.wav") }

// EncodedPath is the lossy artifact path.
func (j *Job) EncodedPath() string { return filepath.Join(j.Root, j.Base+"-full.mp3") }

// OK reports whether the job has not failed.
func (j *Job) OK() bool { return j.State != Failed }

// Status is "ok" or "failed".
func (j *Job) Status() string {
	if j.OK() {
		return "ok"
	}
	return "failed"
}

func (j *Job) Start(now time.Time) error {
	if j.State != Pending {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, j.State)
	}
	j.State = InProgress
	j.started = now

	return nil
}

// Fail records err and moves the job to Failed. Only the first failure is
// kept.
func (j *Job) Fail(err error) error {
	switch j.State {
	case Failed:
		return nil
	case Completed:
		return fmt.Errorf("%w: fail from %s", ErrInvalidTransition, j.State)
	}
	j.State = Failed
	j.Err = err

	return nil
}

func (j *Job) Complete() error {
	if j.State != InProgress {
		return fmt.Errorf("%w: complete from %s", ErrInvalidTransition, j.State)
	}
	j.State = Completed

	return nil
}

// Warn records a non-fatal problem.
func (j *Job) Warn(msg string) {
	j.Warnings = append(j.Warnings, msg)
}

func (j *Job) finish(now time.Time) {
	if !j.started.IsZero() {
		j.Elapsed = now.Sub(j.started)
	}
}
