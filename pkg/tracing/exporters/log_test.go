package exporters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestLogExporter(t *testing.T) {
	records := []SpanRecord{}
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(NewLogExporter(func(r SpanRecord) {
		records = append(records, r)
	})))
	tracer := provider.Tracer("test")

	_, ok := tracer.Start(context.Background(), "evaluation.Evaluate")
	ok.End()
	_, failed := tracer.Start(context.Background(), "treeversion.Get")
	failed.SetStatus(codes.Error, "not found")
	failed.End()

	require.NoError(t, provider.Shutdown(context.Background()))
	require.Len(t, records, 2)
	assert.Equal(t, "evaluation.Evaluate", records[0].Name)
	assert.False(t, records[0].Failed)
	assert.Equal(t, "treeversion.Get", records[1].Name)
	assert.True(t, records[1].Failed)
	assert.NotEmpty(t, records[1].TraceID)
}

func TestNewOTLPExporterRejectsUnknownProtocol(t *testing.T) {
	config := DefaultOTLPConfig()
	config.Protocol = "carrier-pigeon"

	_, err := NewOTLPExporter(context.Background(), config)
	assert.Error(t, err)
}

func TestOTLPEndpoint(t *testing.T) {
	assert.Equal(t, "localhost:4317", OTLPEndpoint(ProtocolGRPC, ""))
	assert.Equal(t, "localhost:4318", OTLPEndpoint(ProtocolHTTP, ""))
	assert.Equal(t, "collector:4317", OTLPEndpoint(ProtocolHTTP, "collector:4317"))
}

func TestNewOTLPExporterUnknownProtocol(t *testing.T) {
	_, err := NewOTLPExporter(context.Background(), "zipkin", "", true)
	assert.EqualError(t, err, "unsupported otlp protocol 'zipkin'")
}
