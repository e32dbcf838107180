// Package sink publishes reconciliation results to downstream consumers.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

// Event types.
const (
	TypeComparisonReport = "comparison_report"
)

// Sink publishes typed events.
type Sink interface {
	Emit(ctx context.Context, typ, key string, v any) error
	Close() error
}

// Envelope wraps every published event.
type Envelope struct {
	Type string          `json:"type"`
	TS   int64           `json:"ts"` // Unix ms
	Data json.RawMessage `json:"data"`
}

// KafkaSink publishes envelopes to a Kafka topic with a SyncProducer.
type KafkaSink struct {
	topic string
	p     sarama.SyncProducer
	now   func() time.Time
}

// NewKafkaSink connects a producer to brokers (comma-separated).
func NewKafkaSink(brokersCSV, topic string, cfg *sarama.Config) (*KafkaSink, error) {
	if topic == "" {
		return nil, errors.New("topic empty")
	}
	brokers := SplitCSV(brokersCSV)
	if len(brokers) == 0 {
		return nil, errors.New("no brokers")
	}
	if cfg == nil {
		cfg = sarama.NewConfig()
		cfg.Producer.RequiredAcks = sarama.WaitForAll
		cfg.Producer.Retry.Max = 5
		cfg.Producer.Retry.Backoff = 200 * time.Millisecond
	}
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewKafkaSinkWithProducer(p, topic), nil
}

// NewKafkaSinkWithProducer wraps an existing producer.
func NewKafkaSinkWithProducer(p sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{topic: topic, p: p, now: time.Now}
}

// WithClock sets the clock used for envelope timestamps.
func (s *KafkaSink) WithClock(now func() time.Time) *KafkaSink {
	s.now = now
	return s
}

// Compile-time interface check.
var _ Sink = (*KafkaSink)(nil)

// Close closes the producer.
func (s *KafkaSink) Close() error {
	if s.p != nil {
		return s.p.Close()
	}
	return nil
}

// Emit marshals v into an Envelope and waits for the broker ack. A
// json.RawMessage or []byte v is embedded as-is.
func (s *KafkaSink) Emit(ctx context.Context, typ, key string, v any) error {
	// SyncProducer does not take a context; check it before sending.
	if err := ctx.Err(); err != nil {
		return err
	}

	var data json.RawMessage
	switch x := v.(type) {
	case json.RawMessage:
		data = x
	case []byte:
		data = x
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		data = b
	}
	if !json.Valid(data) {
		return fmt.Errorf("marshal %s: invalid JSON payload", typ)
	}

	b, err := json.Marshal(Envelope{Type: typ, TS: s.now().UnixMilli(), Data: data})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Value: sarama.ByteEncoder(b),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	if _, _, err := s.p.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka emit failed: %w", err)
	}
	return nil
}

// SplitCSV splits a comma-separated list, dropping empty items.
func SplitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
