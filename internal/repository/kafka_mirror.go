package repository

import (
	"context"

	"CoinStream/internal/event"
	pkgkafka "CoinStream/pkg/kafka"
)

// KafkaMirror implements event.Mirror by copying every broadcast envelope to
// a Kafka topic for out-of-process consumers.
type KafkaMirror struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaMirror creates a Kafka-backed event mirror.
func NewKafkaMirror(producer *pkgkafka.Producer, topic string) event.Mirror {
	return &KafkaMirror{producer: producer, topic: topic}
}

func (m *KafkaMirror) Publish(ctx context.Context, payload []byte) error {
	return m.producer.Publish(ctx, m.topic, nil, payload)
}

// Close closes the underlying producer.
func (m *KafkaMirror) Close() error {
	if m.producer != nil {
		return m.producer.Close()
	}
	return nil
}
