package repository

import (
	"context"
	"fmt"

	"CourtArb/internal/domain/models"
	domrepo "CourtArb/internal/domain/repository"
	pkgkafka "CourtArb/pkg/kafka"
)

type batchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// KafkaSnapshotPublisher streams every cycle's snapshot to Kafka, one message
// per event keyed by event id.
type KafkaSnapshotPublisher struct {
	producer batchPublisher
	topic    string
}

var _ domrepo.SnapshotHook = (*KafkaSnapshotPublisher)(nil)

func NewKafkaSnapshotPublisher(producer *pkgkafka.Producer, topic string) *KafkaSnapshotPublisher {
	return &KafkaSnapshotPublisher{producer: producer, topic: topic}
}

func (p *KafkaSnapshotPublisher) Name() string { return "kafka" }

func (p *KafkaSnapshotPublisher) OnSnapshot(ctx context.Context, events []models.UnifiedEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(events))
	for i, ev := range events {
		msgs[i] = pkgkafka.Message{Key: []byte(ev.EventID), Value: ev}
	}
	if err := p.producer.PublishBatch(ctx, p.topic, msgs); err != nil {
		return fmt.Errorf("publish snapshot (%d events): %w", len(events), err)
	}
	return nil
}
