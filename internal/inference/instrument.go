package inference

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/glyphcmd/internal/observe"
)

type instrumented struct {
	next    Client
	metrics *observe.Metrics
}

// Instrument wraps next so that every call is traced and recorded in m.
// A nil m uses [observe.DefaultMetrics].
func Instrument(next Client, m *observe.Metrics) Client {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &instrumented{next: next, metrics: m}
}

func (c *instrumented) Name() string { return c.next.Name() }

func (c *instrumented) Infer(ctx context.Context, req Request) (string, error) {
	ctx, span := observe.StartSpan(ctx, "inference.infer",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("backend", c.next.Name()),
			attribute.String("stage", req.Stage),
			attribute.Int("prompt.length", len(req.Prompt)),
		),
	)
	defer span.End()

	start := time.Now()
	text, err := c.next.Infer(ctx, req)
	kind := ErrorKind(err)
	c.metrics.RecordInference(ctx, c.next.Name(), req.Stage, time.Since(start), kind)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		observe.Logger(ctx).Warn("inference call failed",
			"backend", c.next.Name(),
			"stage", req.Stage,
			"kind", kind,
			"err", err,
		)
		return "", err
	}
	span.SetAttributes(attribute.Int("reply.length", len(text)))
	return text, nil
}

// ErrorKind classifies err for metrics: "" for nil, then "timeout",
// "status" (the backend answered with a failure code) or "transport".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	te := AsTransportError("", err)
	switch {
	case te.Timeout():
		return "timeout"
	case te.StatusCode >= 300:
		return "status"
	default:
		return "transport"
	}
}
