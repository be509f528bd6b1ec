package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"KalshiFlow/internal/domain/models"
	domrepo "KalshiFlow/internal/domain/repository"
	domsvc "KalshiFlow/internal/domain/service"
	"KalshiFlow/internal/services/features"
	applogger "KalshiFlow/pkg/logger"
)

const (
	MsgNoMarkets     = "No markets fetched from Kalshi API"
	msgSigningFailed = MsgNoMarkets + ": could not sign request, check API keys"
)

// RankerConfig holds the ranking policy.
type RankerConfig struct {
	MinVolume      float64       // markets at or below this volume are dropped
	TopN           int           // hard cap on returned markets
	PublishTimeout time.Duration // budget for handing a snapshot to the publisher
}

// MarketRanker fetches markets, keeps the actively traded ones and orders them
// by liquidity score.
type MarketRanker struct {
	source    domrepo.MarketSource
	analyzer  domsvc.FlowAnalyzer
	publisher domrepo.SnapshotPublisher
	metrics   domrepo.Metrics
	log       *applogger.Logger
	cfg       RankerConfig
	now       func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewMarketRanker creates the ranking use case. publisher and metrics may be nil.
func NewMarketRanker(
	source domrepo.MarketSource,
	analyzer domsvc.FlowAnalyzer,
	publisher domrepo.SnapshotPublisher,
	metrics domrepo.Metrics,
	log *applogger.Logger,
	cfg RankerConfig,
) *MarketRanker {
	if cfg.TopN <= 0 {
		cfg.TopN = 50
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 10 * time.Second
	}
	if log == nil {
		log = applogger.NewNop()
	}
	return &MarketRanker{
		source:    source,
		analyzer:  analyzer,
		publisher: publisher,
		metrics:   metrics,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Rank returns at most limit markets (TopN when limit is 0 or larger than TopN).
// An empty fetch is the only unsuccessful outcome; a fetch whose records are all
// filtered out succeeds with an empty list.
func (r *MarketRanker) Rank(ctx context.Context, limit int) models.MarketsResult {
	start := time.Now()
	fetched := r.source.FetchAll(ctx)

	if len(fetched.Markets) == 0 {
		msg := MsgNoMarkets
		if fetched.SigningFailed {
			msg = msgSigningFailed
		}
		r.log.Warn("ranking skipped, nothing fetched",
			applogger.String("stop", fetched.StopReason))
		if r.metrics != nil {
			r.metrics.RecordRanking(0, 0)
		}
		return models.MarketsResult{
			Success: false,
			Markets: []models.AnalyzedMarket{},
			Message: msg,
		}
	}

	trending := r.filter(fetched.Markets)
	r.log.Info("filtered trending markets",
		applogger.Int("fetched", len(fetched.Markets)),
		applogger.Int("trending", len(trending)),
		applogger.Float64("min_volume", r.cfg.MinVolume),
	)

	analyzed := make([]models.AnalyzedMarket, 0, len(trending))
	for _, m := range trending {
		analyzed = append(analyzed, r.analyzer.Analyze(m))
	}

	sort.SliceStable(analyzed, func(i, j int) bool {
		return analyzed[i].LiquidityScore > analyzed[j].LiquidityScore
	})

	n := r.cfg.TopN
	if limit > 0 && limit < n {
		n = limit
	}
	if len(analyzed) > n {
		analyzed = analyzed[:n]
	}

	if r.metrics != nil {
		r.metrics.RecordRanking(len(fetched.Markets), len(analyzed))
		r.metrics.RecordLatency("rank_markets", time.Since(start).Seconds())
	}
	r.log.Info("ranked markets", applogger.Int("count", len(analyzed)), applogger.Int("pages", fetched.Pages))

	r.publish(ctx, analyzed)

	ts := r.now().UTC()
	return models.MarketsResult{
		Success:   true,
		Markets:   analyzed,
		Timestamp: &ts,
	}
}

// filter keeps markets that have traded (last price > 0) with volume above MinVolume.
func (r *MarketRanker) filter(markets []models.RawMarket) []models.RawMarket {
	out := make([]models.RawMarket, 0, len(markets))
	for _, m := range markets {
		if features.Float(m, "last_price_dollars") <= 0 {
			continue
		}
		if features.FirstNonZero(m, "volume", "liquidity") <= r.cfg.MinVolume {
			continue
		}
		out = append(out, m)
	}
	return out
}

// publish hands the snapshot to the publisher in the background. The request
// does not wait for it and never sees its errors.
func (r *MarketRanker) publish(ctx context.Context, markets []models.AnalyzedMarket) {
	if r.publisher == nil || len(markets) == 0 {
		return
	}
	snapshot := append([]models.AnalyzedMarket(nil), markets...)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.log.Warn("snapshot dropped, ranker is shutting down", applogger.Int("markets", len(snapshot)))
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.PublishTimeout)
		defer cancel()

		err := r.publisher.PublishSnapshot(pctx, snapshot)
		if r.metrics != nil {
			r.metrics.RecordPublished(len(snapshot), err == nil)
		}
		if err != nil {
			r.log.Error("publish market snapshot failed", applogger.Int("markets", len(snapshot)), applogger.Error(err))
		}
	}()
}

// Shutdown stops accepting new snapshots and waits for the ones in flight.
// Rankings requested afterwards are still answered, just not published.
func (r *MarketRanker) Shutdown() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}
