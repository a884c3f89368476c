package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/pricing"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testProducer(w *fakeWriter) *Producer {
	return newProducer(w, DefaultProducerConfig(), ectologger.NewEctoLogger(func(ectologger.EctoLogMessage) {}))
}

func events(materials ...pricing.MaterialTotal) (*EvaluationEvent, *MaterialUsageEvent) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &EvaluationEvent{
			AuditID:        "audit-1",
			TenantID:       "acme",
			TreeVersionID:  "tv-1",
			Mode:           "persist",
			OK:             true,
			LineTotalCents: 7600,
			Timestamp:      ts,
			TraceID:        "4bf92f3577b34da6a3ce929d0e0e4736",
			SpanID:         "00f067aa0ba902b7",
		}, &MaterialUsageEvent{
			AuditID:       "audit-1",
			TenantID:      "acme",
			TreeVersionID: "tv-1",
			Quantity:      2,
			Materials:     materials,
			Timestamp:     ts,
		}
}

func TestPublishEvaluation(t *testing.T) {
	w := &fakeWriter{}
	p := testProducer(w)

	evaluation, usage := events(pricing.MaterialTotal{SkuRef: "GROMMET-BRASS", UOM: "ea", Quantity: decimal.NewFromInt(16), NodeIDs: []string{"finishing"}})
	require.NoError(t, p.PublishEvaluation(context.Background(), evaluation, usage))
	require.Len(t, w.messages, 2)

	summary := w.messages[0]
	assert.Equal(t, "pbv2.evaluations", summary.Topic)
	assert.Equal(t, "acme:tv-1", string(summary.Key))
	headers := make([]Header, 0, len(summary.Headers))
	for _, h := range summary.Headers {
		headers = append(headers, Header{Key: h.Key, Value: h.Value})
	}
	extracted := ExtractHeaders(headers)
	assert.Equal(t, EventTypeEvaluation, extracted.EventType)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", extracted.TraceParent)

	decoded, err := ParseEvaluationEvent(summary.Value)
	require.NoError(t, err)
	assert.Equal(t, int64(7600), decoded.LineTotalCents)

	materials := w.messages[1]
	assert.Equal(t, "pbv2.material-usage", materials.Topic)
	usageEvent, err := ParseMaterialUsageEvent(materials.Value)
	require.NoError(t, err)
	require.Len(t, usageEvent.Materials, 1)
	assert.Equal(t, "GROMMET-BRASS", usageEvent.Materials[0].SkuRef)
	assert.True(t, decimal.NewFromInt(16).Equal(usageEvent.Materials[0].Quantity))
}

func TestPublishEvaluationWithoutMaterials(t *testing.T) {
	w := &fakeWriter{}
	p := testProducer(w)

	evaluation, usage := events()
	require.NoError(t, p.PublishEvaluation(context.Background(), evaluation, usage))
	require.Len(t, w.messages, 1)
	assert.Equal(t, "pbv2.evaluations", w.messages[0].Topic)
}

func TestPublishEvaluationWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := testProducer(w)

	evaluation, usage := events()
	err := p.PublishEvaluation(context.Background(), evaluation, usage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	config := DefaultProducerConfig()
	config.Brokers = nil
	_, err := NewProducer(config, ectologger.NewEctoLogger(func(ectologger.EctoLogMessage) {}))
	assert.Error(t, err)
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, testProducer(w).Close())
	assert.True(t, w.closed)
}
