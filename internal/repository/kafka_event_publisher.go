package repository

import (
	"context"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	pkgkafka "PriceCast/pkg/kafka"

	"github.com/segmentio/kafka-go"
)

// eventProducer is satisfied by *pkgkafka.Producer.
type eventProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}, headers ...kafka.Header) error
	Close() error
}

// KafkaEventPublisher writes domain events keyed by symbol, so events for one
// symbol stay ordered within a partition.
type KafkaEventPublisher struct {
	producer eventProducer
	topic    string
}

func NewKafkaEventPublisher(producer eventProducer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, ev *models.Event) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.Symbol), ev, pkgkafka.TraceHeader(ev.ID))
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)
