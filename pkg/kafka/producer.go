package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
)

const (
	EventTypeEvaluation    = "pbv2.evaluation.persisted"
	EventTypeMaterialUsage = "pbv2.material-usage"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes evaluation and material usage events.
type Producer struct {
	writer messageWriter
	logger ectologger.Logger
	config ProducerConfig
}

func NewProducer(config ProducerConfig, logger ectologger.Logger) (*Producer, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}

	var compression kafka.Compression
	switch config.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "snappy":
		compression = kafka.Snappy
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	default:
		compression = 0
	}

	// Topic stays unset on the writer; each message names its own.
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              config.BatchSize,
		BatchTimeout:           config.BatchTimeout,
		MaxAttempts:            config.MaxAttempts,
		WriteTimeout:           config.WriteTimeout,
		Compression:            compression,
		RequiredAcks:           kafka.RequiredAcks(config.RequiredAcks),
		AllowAutoTopicCreation: true,
	}

	return newProducer(writer, config, logger), nil
}

func newProducer(writer messageWriter, config ProducerConfig, logger ectologger.Logger) *Producer {
	return &Producer{
		writer: writer,
		logger: logger,
		config: config,
	}
}

func messageKey(tenantID, treeVersionID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", tenantID, treeVersionID))
}

func toKafkaHeaders(h MessageHeaders) []kafka.Header {
	out := make([]kafka.Header, 0)
	for _, header := range h.ToKafkaHeaders() {
		out = append(out, kafka.Header{Key: header.Key, Value: header.Value})
	}
	return out
}

// PublishEvaluation writes the evaluation summary and, when it has materials, the usage event in
// one batch.
func (p *Producer) PublishEvaluation(ctx context.Context, evaluation *EvaluationEvent, usage *MaterialUsageEvent) error {
	data, err := json.Marshal(evaluation)
	if err != nil {
		return fmt.Errorf("failed to serialize evaluation event: %w", err)
	}

	messages := []kafka.Message{{
		Topic: p.config.EvaluationTopic,
		Key:   messageKey(evaluation.TenantID, evaluation.TreeVersionID),
		Value: data,
		Headers: toKafkaHeaders(MessageHeaders{
			TenantID:      evaluation.TenantID,
			TreeVersionID: evaluation.TreeVersionID,
			AuditID:       evaluation.AuditID,
			EventType:     EventTypeEvaluation,
			TraceParent:   traceParent(evaluation.TraceID, evaluation.SpanID),
		}),
		Time: evaluation.Timestamp,
	}}

	if usage != nil && len(usage.Materials) > 0 {
		data, err := json.Marshal(usage)
		if err != nil {
			return fmt.Errorf("failed to serialize material usage event: %w", err)
		}
		messages = append(messages, kafka.Message{
			Topic: p.config.MaterialUsageTopic,
			Key:   messageKey(usage.TenantID, usage.TreeVersionID),
			Value: data,
			Headers: toKafkaHeaders(MessageHeaders{
				TenantID:      usage.TenantID,
				TreeVersionID: usage.TreeVersionID,
				AuditID:       usage.AuditID,
				EventType:     EventTypeMaterialUsage,
				TraceParent:   traceParent(usage.TraceID, usage.SpanID),
			}),
			Time: usage.Timestamp,
		})
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("failed to publish evaluation events: %w", err)
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"audit_id":      evaluation.AuditID,
		"message_count": len(messages),
	}).Debug("Published evaluation events")
	return nil
}

func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close producer: %w", err)
	}
	p.logger.Info("Kafka producer closed")
	return nil
}

// Ping dials the first reachable broker.
func (p *Producer) Ping(ctx context.Context) error {
	var lastErr error
	for _, broker := range p.config.Brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("no kafka broker reachable: %w", lastErr)
}
