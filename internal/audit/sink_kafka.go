package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"imageref/internal/platform/kafka/producer"
)

// MessagePublisher is the slice of the Kafka producer the sink needs.
type MessagePublisher interface {
	Publish(ctx context.Context, msg *producer.Message) error
}

// KafkaSink writes events as JSON to a topic, keyed by lowercased email so
// one family's events stay ordered within a partition.
type KafkaSink struct {
	producer MessagePublisher
	topic    string
}

func NewKafkaSink(p MessagePublisher, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

func (s *KafkaSink) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	return s.producer.Publish(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(strings.ToLower(strings.TrimSpace(event.Email))),
		Value: value,
		Headers: map[string]string{
			"action":     event.Action,
			"request_id": event.RequestID,
		},
	})
}
