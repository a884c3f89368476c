package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/pricing"
)

// EvaluationEvent summarises one persisted evaluation.
type EvaluationEvent struct {
	AuditID        string    `json:"audit_id"`
	TenantID       string    `json:"tenant_id"`
	TreeVersionID  string    `json:"tree_version_id"`
	TreeHash       string    `json:"tree_hash"`
	Mode           string    `json:"mode"`
	OK             bool      `json:"ok"`
	ErrorCount     int       `json:"error_count"`
	WarningCount   int       `json:"warning_count"`
	LineTotalCents int64     `json:"line_total_cents"`
	Timestamp      time.Time `json:"timestamp"`

	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// MaterialUsageEvent carries the material effects of a persisted evaluation for inventory
// consumers.
type MaterialUsageEvent struct {
	AuditID       string                  `json:"audit_id"`
	TenantID      string                  `json:"tenant_id"`
	TreeVersionID string                  `json:"tree_version_id"`
	Quantity      int64                   `json:"quantity"`
	Materials     []pricing.MaterialTotal `json:"materials"`
	Timestamp     time.Time               `json:"timestamp"`

	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

func ParseEvaluationEvent(data []byte) (*EvaluationEvent, error) {
	var event EvaluationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func ParseMaterialUsageEvent(data []byte) (*MaterialUsageEvent, error) {
	var event MaterialUsageEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// MessageHeaders are copied onto every message so consumers can filter without decoding.
type MessageHeaders struct {
	TenantID      string
	TreeVersionID string
	AuditID       string
	EventType     string
	TraceParent   string
}

func traceParent(traceID, spanID string) string {
	if traceID == "" || spanID == "" {
		return ""
	}
	return fmt.Sprintf("00-%s-%s-01", traceID, spanID)
}

func (h *MessageHeaders) ToKafkaHeaders() []Header {
	headers := make([]Header, 0, 5)

	if h.TenantID != "" {
		headers = append(headers, Header{Key: "tenant_id", Value: []byte(h.TenantID)})
	}
	if h.TreeVersionID != "" {
		headers = append(headers, Header{Key: "tree_version_id", Value: []byte(h.TreeVersionID)})
	}
	if h.AuditID != "" {
		headers = append(headers, Header{Key: "audit_id", Value: []byte(h.AuditID)})
	}
	if h.EventType != "" {
		headers = append(headers, Header{Key: "event_type", Value: []byte(h.EventType)})
	}
	if h.TraceParent != "" {
		headers = append(headers, Header{Key: "traceparent", Value: []byte(h.TraceParent)})
	}

	return headers
}

type Header struct {
	Key   string
	Value []byte
}

func ExtractHeaders(headers []Header) MessageHeaders {
	var mh MessageHeaders
	for _, h := range headers {
		switch h.Key {
		case "tenant_id":
			mh.TenantID = string(h.Value)
		case "tree_version_id":
			mh.TreeVersionID = string(h.Value)
		case "audit_id":
			mh.AuditID = string(h.Value)
		case "event_type":
			mh.EventType = string(h.Value)
		case "traceparent":
			mh.TraceParent = string(h.Value)
		}
	}
	return mh
}
