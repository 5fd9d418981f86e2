package telemetry

import (
	"context"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/go-narrate/internal/tts"
)

type tracedEngine struct {
	next   tts.Engine
	tracer trace.Tracer
	name   string
	lang   string
}

// TraceFactory wraps every engine built by f so that each Synthesize call
// runs in its own span.
func TraceFactory(f tts.Factory, tracer trace.Tracer, engineName string) tts.Factory {
	return func(lang string) (tts.Engine, error) {
		e, err := f(lang)
		if err != nil {
			return nil, err
		}
		return &tracedEngine{next: e, tracer: tracer, name: engineName, lang: lang}, nil
	}
}

func (t *tracedEngine) Synthesize(ctx context.Context, text, voice string, speed float64) ([][]float32, error) {
	ctx, span := t.tracer.Start(ctx, "tts.synthesize", trace.WithAttributes(
		attribute.String("tts.engine", t.name),
		attribute.String("tts.lang", t.lang),
		attribute.String("tts.voice", voice),
		attribute.Float64("tts.speed", speed),
		attribute.Int("tts.text_runes", len([]rune(text))),
	))
	defer span.End()

	buffers, err := t.next.Synthesize(ctx, text, voice, speed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	samples := 0
	for _, b := range buffers {
		samples += len(b)
	}
	span.SetAttributes(attribute.Int("tts.samples", samples))

	return buffers, nil
}

func (t *tracedEngine) Close() error {
	if c, ok := t.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
