package repository

import (
	"context"

	"KalshiFlow/internal/domain/models"
)

// MarketSource retrieves raw markets. It never fails outright: partial data and
// the reason for stopping are carried in the result.
type MarketSource interface {
	FetchAll(ctx context.Context) models.FetchResult
}

// SnapshotPublisher hands a ranked list to downstream consumers.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, markets []models.AnalyzedMarket) error
}

type Metrics interface {
	RecordPageFetched()
	RecordFetchStop(reason string)
	RecordError(kind string)
	RecordRanking(fetched, ranked int)
	RecordPublished(count int, ok bool)
	RecordLatency(op string, seconds float64)
}
