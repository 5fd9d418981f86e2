package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/example/go-narrate/internal/pipeline"
)

// Metrics holds the instruments recorded by the pipeline and the server.
// It doubles as a pipeline.Observer.
type Metrics struct {
	segments       metric.Int64Counter
	segmentSeconds metric.Float64Histogram
	jobs           metric.Int64Counter
	jobSeconds     metric.Float64Histogram
	requests       metric.Int64Counter
	requestSeconds metric.Float64Histogram
	audioBytes     metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	if m.segments, err = meter.Int64Counter("narrate.segments",
		metric.WithDescription("Segments attempted, by status")); err != nil {
		return nil, fmt.Errorf("segments counter: %w", err)
	}
	if m.segmentSeconds, err = meter.Float64Histogram("narrate.segment.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Engine time per segment")); err != nil {
		return nil, fmt.Errorf("segment histogram: %w", err)
	}
	if m.jobs, err = meter.Int64Counter("narrate.jobs",
		metric.WithDescription("Finished jobs, by status")); err != nil {
		return nil, fmt.Errorf("jobs counter: %w", err)
	}
	if m.jobSeconds, err = meter.Float64Histogram("narrate.job.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Wall time per job")); err != nil {
		return nil, fmt.Errorf("job histogram: %w", err)
	}
	if m.requests, err = meter.Int64Counter("narrate.requests",
		metric.WithDescription("Remote synthesis requests, by transport and code")); err != nil {
		return nil, fmt.Errorf("requests counter: %w", err)
	}
	if m.requestSeconds, err = meter.Float64Histogram("narrate.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Remote synthesis latency")); err != nil {
		return nil, fmt.Errorf("request histogram: %w", err)
	}
	if m.audioBytes, err = meter.Int64Counter("narrate.audio.bytes",
		metric.WithUnit("By"),
		metric.WithDescription("Container bytes streamed to remote callers")); err != nil {
		return nil, fmt.Errorf("audio bytes counter: %w", err)
	}

	return &m, nil
}

func statusAttr(ok bool) attribute.KeyValue {
	if ok {
		return attribute.String("status", "ok")
	}
	return attribute.String("status", "failed")
}

func (m *Metrics) SegmentDone(p pipeline.Progress) {
	if len(p.Job.Segments) == 0 {
		return
	}
	last := p.Job.Segments[len(p.Job.Segments)-1]
	ctx := context.Background()
	attrs := metric.WithAttributes(statusAttr(last.Err == nil))

	m.segments.Add(ctx, 1, attrs)
	m.segmentSeconds.Record(ctx, last.Elapsed.Seconds(), attrs)
}

func (m *Metrics) JobDone(j *pipeline.Job) {
	ctx := context.Background()
	attrs := metric.WithAttributes(statusAttr(j.OK()))

	m.jobs.Add(ctx, 1, attrs)
	m.jobSeconds.Record(ctx, j.Elapsed.Seconds(), attrs)
}

// RecordRequest records one remote request. code is the transport status
// (gRPC code name or HTTP status text).
func (m *Metrics) RecordRequest(ctx context.Context, transport, code string, elapsed time.Duration, bytes int) {
	attrs := metric.WithAttributes(
		attribute.String("transport", transport),
		attribute.String("code", code),
	)
	m.requests.Add(ctx, 1, attrs)
	m.requestSeconds.Record(ctx, elapsed.Seconds(), attrs)
	if bytes > 0 {
		m.audioBytes.Add(ctx, int64(bytes), metric.WithAttributes(attribute.String("transport", transport)))
	}
}
