package batch

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/example/go-narrate/internal/pipeline"
)

// Record is the per-input entry of a Summary.
type Record struct {
	Input      string   `json:"input"`
	Base       string   `json:"base"`
	Chunks     int      `json:"chunks"`
	PartsDir   string   `json:"parts_dir"`
	FullWAV    *string  `json:"full_wav"`
	FullMP3    *string  `json:"full_mp3"`
	Status     string   `json:"status"`
	ElapsedSec float64  `json:"elapsed_sec"`
	Warnings   []string `json:"warnings,omitempty"`
	Error      string   `json:"error,omitempty"`
	Published  []string `json:"published,omitempty"`
}

// Totals counts the run's inputs and finished jobs by status.
type Totals struct {
	Inputs int `json:"inputs"`
	OK     int `json:"ok"`
	Failed int `json:"failed"`
}

// Summary aggregates a batch run. Records are kept in input order.
type Summary struct {
	RunID    string   `json:"run_id"`
	Engine   string   `json:"engine,omitempty"`
	Voice    string   `json:"voice"`
	Lang     string   `json:"lang"`
	Rate     int      `json:"rate"`
	Speed    float64  `json:"speed"`
	MaxChars int      `json:"max_chars"`
	Final    string   `json:"final"`
	Encoder  *string  `json:"encoder"`
	Totals   Totals   `json:"totals"`
	Inputs   []Record `json:"inputs"`

	mu sync.Mutex
}

func newSummary(n int) *Summary {
	return &Summary{
		RunID:  uuid.NewString(),
		Totals: Totals{Inputs: n},
		Inputs: make([]Record, n),
	}
}

func newRecord(j *pipeline.Job) Record {
	rec := Record{
		Input:      j.Input,
		Base:       j.Base,
		Chunks:     len(j.Parts),
		PartsDir:   j.PartsDir(),
		Status:     j.Status(),
		ElapsedSec: math.Round(j.Elapsed.Seconds()*1000) / 1000,
		Warnings:   j.Warnings,
	}
	if j.FullWAV != "" {
		rec.FullWAV = &j.FullWAV
	}
	if j.Encoded != "" {
		rec.FullMP3 = &j.Encoded
	}
	if j.Err != nil {
		rec.Error = j.Err.Error()
	}

	return rec
}

// set stores the record for input i and updates the totals.
func (s *Summary) set(i int, rec Record, encoderTool string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Inputs[i] = rec
	if rec.Status == "ok" {
		s.Totals.OK++
	} else {
		s.Totals.Failed++
	}
	if s.Encoder == nil && encoderTool != "" {
		tool := encoderTool
		s.Encoder = &tool
	}
}

// Failed reports whether at least one job failed.
func (s *Summary) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.Totals.Failed > 0
}

// WriteJSON writes the summary as indented JSON, creating parent directories.
func (s *Summary) WriteJSON(path string) error {
	s.mu.Lock()
	data, err := json.MarshalIndent(s, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create summary dir: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}
