package repository

import (
	"context"
	"time"

	"KalshiFlow/internal/domain/models"
	"KalshiFlow/internal/domain/repository"
	pkgkafka "KalshiFlow/pkg/kafka"

	"github.com/google/uuid"
)

// BatchProducer is the part of the Kafka producer the publishers use.
type BatchProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// MarketSnapshot is one ranked market as published to the stream.
type MarketSnapshot struct {
	SnapshotID string                `json:"snapshot_id"`
	Rank       int                   `json:"rank"`
	CapturedAt time.Time             `json:"captured_at"`
	Market     models.AnalyzedMarket `json:"market"`
}

// KafkaSnapshotPublisher publishes each ranked market as its own message keyed by
// ticker. All messages of one ranking share a snapshot id.
type KafkaSnapshotPublisher struct {
	producer BatchProducer
	topic    string
	now      func() time.Time
}

// NewKafkaSnapshotPublisher creates a snapshot publisher. The producer is owned by the caller.
func NewKafkaSnapshotPublisher(producer BatchProducer, topic string) *KafkaSnapshotPublisher {
	return &KafkaSnapshotPublisher{producer: producer, topic: topic, now: time.Now}
}

var _ repository.SnapshotPublisher = (*KafkaSnapshotPublisher)(nil)

func (p *KafkaSnapshotPublisher) PublishSnapshot(ctx context.Context, markets []models.AnalyzedMarket) error {
	if len(markets) == 0 {
		return nil
	}
	id := uuid.NewString()
	at := p.now().UTC()

	msgs := make([]pkgkafka.Message, len(markets))
	for i, m := range markets {
		msgs[i] = pkgkafka.Message{
			Key: []byte(m.ID),
			Value: MarketSnapshot{
				SnapshotID: id,
				Rank:       i + 1,
				CapturedAt: at,
				Market:     m,
			},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// NoopSnapshotPublisher drops snapshots. Used when Kafka is disabled.
type NoopSnapshotPublisher struct{}

func (NoopSnapshotPublisher) PublishSnapshot(context.Context, []models.AnalyzedMarket) error {
	return nil
}

// LogPublisher adapts the producer to the logger's collector.
type LogPublisher struct {
	producer BatchProducer
}

func NewLogPublisher(producer BatchProducer) *LogPublisher {
	return &LogPublisher{producer: producer}
}

func (p *LogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}
