package exporters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
)

// SpanRecord is the part of a finished span worth a log line.
type SpanRecord struct {
	Name     string
	TraceID  string
	SpanID   string
	Duration time.Duration
	Failed   bool
}

// LogExporter hands finished spans to a callback, typically a logger. A nil callback drops them.
type LogExporter struct {
	write func(SpanRecord)
}

func NewLogExporter(write func(SpanRecord)) *LogExporter {
	return &LogExporter{write: write}
}

func (e *LogExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	if e.write == nil {
		return nil
	}
	for _, s := range spans {
		e.write(SpanRecord{
			Name:     s.Name(),
			TraceID:  s.SpanContext().TraceID().String(),
			SpanID:   s.SpanContext().SpanID().String(),
			Duration: s.EndTime().Sub(s.StartTime()),
			Failed:   s.Status().Code == codes.Error,
		})
	}
	return nil
}

func (e *LogExporter) Shutdown(ctx context.Context) error {
	return nil
}
