package kafka

import (
	"time"
)

// ProducerConfig configures the event producer.
type ProducerConfig struct {
	Brokers []string

	// MaterialUsageTopic receives one event per persisted evaluation with material effects.
	MaterialUsageTopic string

	// EvaluationTopic receives one summary event per persisted evaluation.
	EvaluationTopic string

	BatchSize    int
	BatchTimeout time.Duration

	// RequiredAcks: 0 = no acks, 1 = leader only, -1 = all replicas
	RequiredAcks int

	MaxAttempts  int
	WriteTimeout time.Duration

	// Compression is one of none, gzip, snappy, lz4, zstd.
	Compression string
}

func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Brokers:            []string{"localhost:9092"},
		MaterialUsageTopic: "pbv2.material-usage",
		EvaluationTopic:    "pbv2.evaluations",
		BatchSize:          100,
		BatchTimeout:       100 * time.Millisecond,
		RequiredAcks:       1,
		MaxAttempts:        3,
		WriteTimeout:       10 * time.Second,
		Compression:        "snappy",
	}
}
