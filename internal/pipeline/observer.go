package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Progress is emitted after every attempted segment.
type Progress struct {
	Job     *Job
	Done    int
	Total   int
	Elapsed time.Duration
	// Rate is segments per second.
	Rate float64
	ETA  time.Duration
}

func newProgress(job *Job, done, total int, elapsed time.Duration) Progress {
	p := Progress{Job: job, Done: done, Total: total, Elapsed: elapsed}
	if secs := elapsed.Seconds(); secs > 0 {
		p.Rate = float64(done) / secs
	}
	if p.Rate > 0 {
		p.ETA = time.Duration(float64(total-done) / p.Rate * float64(time.Second))
	}

	return p
}

// Observer receives progress notifications. Observers never influence the
// orchestrator's control flow.
type Observer interface {
	SegmentDone(Progress)
	JobDone(*Job)
}

type NopObserver struct{}

func (NopObserver) SegmentDone(Progress) {}
func (NopObserver) JobDone(*Job)         {}

// MultiObserver fans notifications out in order.
type MultiObserver []Observer

func (m MultiObserver) SegmentDone(p Progress) {
	for _, o := range m {
		o.SegmentDone(p)
	}
}

func (m MultiObserver) JobDone(j *Job) {
	for _, o := range m {
		o.JobDone(j)
	}
}

// LogObserver writes structured progress records.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o LogObserver) SegmentDone(p Progress) {
	o.logger().Debug("segment done",
		slog.String("base", p.Job.Base),
		slog.Int("done", p.Done),
		slog.Int("total", p.Total),
		slog.Duration("elapsed", p.Elapsed),
		slog.Duration("eta", p.ETA),
	)
}

func (o LogObserver) JobDone(j *Job) {
	attrs := []any{
		slog.String("input", j.Input),
		slog.String("base", j.Base),
		slog.String("status", j.Status()),
		slog.Int("parts", len(j.Parts)),
		slog.Duration("elapsed", j.Elapsed),
	}
	if j.Err != nil {
		o.logger().Error("job failed", append(attrs, slog.String("error", j.Err.Error()))...)
		return
	}
	o.logger().Info("job done", attrs...)
}

// TextProgress prints one human-readable line per segment.
type TextProgress struct {
	W io.Writer
}

func (t TextProgress) SegmentDone(p Progress) {
	_, _ = fmt.Fprintf(t.W, "%s [%d/%d]  elapsed=%0.1fs  eta=%0.1fs\n",
		p.Job.Base, p.Done, p.Total, p.Elapsed.Seconds(), p.ETA.Seconds())
}

func (TextProgress) JobDone(*Job) {}
