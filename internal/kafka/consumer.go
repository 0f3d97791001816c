package kafkax

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, group, topic string) *Consumer {
	return &Consumer{reader: kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  group,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})}
}

func (c *Consumer) Fetch(ctx context.Context) (kafka.Message, error) {
	return c.reader.FetchMessage(ctx)
}

func (c *Consumer) Commit(ctx context.Context, m kafka.Message) error {
	return c.reader.CommitMessages(ctx, m)
}

func (c *Consumer) Close() error { return c.reader.Close() }

const AuditEventType = "rollup.served"

// AuditEvent records one served (or failed) rollup request.
type AuditEvent struct {
	Type       string            `json:"type"`
	Spec       string            `json:"spec"`
	Filters    map[string]string `json:"filters,omitempty"`
	Rows       int               `json:"rows"`
	DurationMS int64             `json:"duration_ms"`
	Outcome    string            `json:"outcome"`
	Error      string            `json:"error,omitempty"`
}

func ParseAuditEvent(b []byte) (AuditEvent, error) {
	var e AuditEvent
	if err := json.Unmarshal(b, &e); err != nil {
		return e, err
	}
	if e.Type != AuditEventType {
		return e, errors.New("unexpected event type " + e.Type)
	}
	if e.Spec == "" {
		return e, errors.New("audit event without spec")
	}
	return e, nil
}
