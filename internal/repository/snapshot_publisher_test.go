package repository

import (
	"context"
	"testing"
	"time"

	"KalshiFlow/internal/domain/models"
	pkgkafka "KalshiFlow/pkg/kafka"

	"github.com/google/uuid"
)

type fakeProducer struct {
	topic   string
	batch   []pkgkafka.Message
	single  interface{}
	singleK []byte
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	f.topic, f.singleK, f.single = topic, key, value
	return nil
}

func (f *fakeProducer) PublishBatch(_ context.Context, topic string, messages []pkgkafka.Message) error {
	f.topic, f.batch = topic, messages
	return nil
}

func TestPublishSnapshotKeysByTickerAndRanks(t *testing.T) {
	fp := &fakeProducer{}
	p := NewKafkaSnapshotPublisher(fp, "kalshiflow.markets")
	p.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	err := p.PublishSnapshot(context.Background(), []models.AnalyzedMarket{
		{ID: "KXA", LiquidityScore: 90},
		{ID: "KXB", LiquidityScore: 80},
	})
	if err != nil {
		t.Fatal(err)
	}
	if fp.topic != "kalshiflow.markets" || len(fp.batch) != 2 {
		t.Fatalf("topic=%s batch=%d", fp.topic, len(fp.batch))
	}

	first := fp.batch[0].Value.(MarketSnapshot)
	second := fp.batch[1].Value.(MarketSnapshot)
	if string(fp.batch[0].Key) != "KXA" || first.Rank != 1 || second.Rank != 2 {
		t.Fatalf("unexpected messages %+v %+v", first, second)
	}
	if first.SnapshotID != second.SnapshotID {
		t.Fatalf("snapshot ids differ within one ranking")
	}
	if _, err := uuid.Parse(first.SnapshotID); err != nil {
		t.Fatalf("snapshot id is not a uuid: %v", err)
	}
}

func TestPublishSnapshotEmpty(t *testing.T) {
	fp := &fakeProducer{}
	if err := NewKafkaSnapshotPublisher(fp, "t").PublishSnapshot(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if fp.batch != nil {
		t.Fatalf("empty snapshot was published")
	}
}

func TestLogPublisherForwards(t *testing.T) {
	fp := &fakeProducer{}
	if err := NewLogPublisher(fp).PublishMessage(context.Background(), "kalshiflow.logs", []string{"x"}); err != nil {
		t.Fatal(err)
	}
	if fp.topic != "kalshiflow.logs" || fp.singleK != nil {
		t.Fatalf("topic=%s key=%v", fp.topic, fp.singleK)
	}
}
