package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"KalshiFlow/internal/domain/models"
	"KalshiFlow/internal/services/analytics"
	xhttp "KalshiFlow/pkg/http"
)

type staticSource struct {
	res   models.FetchResult
	calls int
}

func (s *staticSource) FetchAll(context.Context) models.FetchResult {
	s.calls++
	return s.res
}

type countingAnalyzer struct {
	inner *analytics.FlowAnalyzer
	calls int
}

func (a *countingAnalyzer) Analyze(m models.RawMarket) models.AnalyzedMarket {
	a.calls++
	return a.inner.Analyze(m)
}

type recordingPublisher struct {
	mu        sync.Mutex
	snapshots [][]models.AnalyzedMarket
	err       error
}

func (p *recordingPublisher) PublishSnapshot(_ context.Context, markets []models.AnalyzedMarket) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, markets)
	return p.err
}

func market(ticker, price string, volume, oi int) models.RawMarket {
	return models.RawMarket{
		"ticker":             ticker,
		"title":              "Market " + ticker,
		"last_price_dollars": price,
		"volume":             json.Number(fmt.Sprint(volume)),
		"open_interest":      json.Number(fmt.Sprint(oi)),
	}
}

func newRanker(src *staticSource, pub *recordingPublisher) (*MarketRanker, *countingAnalyzer) {
	an := &countingAnalyzer{inner: analytics.NewFlowAnalyzer(analytics.DefaultFlowPolicy())}
	r := NewMarketRanker(src, an, nil, nil, nil, RankerConfig{MinVolume: 5000, TopN: 50})
	if pub != nil {
		r.publisher = pub
	}
	r.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return r, an
}

func TestRankEmptyFetchIsUnsuccessful(t *testing.T) {
	src := &staticSource{res: models.FetchResult{StopErr: &xhttp.StatusError{StatusCode: 503}}}
	r, an := newRanker(src, nil)

	res := r.Rank(context.Background(), 0)

	if res.Success || res.Message != MsgNoMarkets {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Markets == nil || len(res.Markets) != 0 {
		t.Fatalf("markets must be an empty list, got %#v", res.Markets)
	}
	if res.Timestamp != nil {
		t.Fatalf("timestamp set on failure")
	}
	if an.calls != 0 {
		t.Fatalf("analyzer ran on empty fetch")
	}
}

func TestRankSigningFailureMessage(t *testing.T) {
	src := &staticSource{res: models.FetchResult{
		StopErr:       errors.New("kalshi: api credentials not configured"),
		StopReason:    "no_credentials",
		SigningFailed: true,
	}}
	r, _ := newRanker(src, nil)

	res := r.Rank(context.Background(), 0)
	if res.Success || !strings.HasPrefix(res.Message, MsgNoMarkets) || !strings.Contains(res.Message, "API keys") {
		t.Fatalf("message = %q", res.Message)
	}
}

func TestRankAllFilteredIsSuccessfulAndEmpty(t *testing.T) {
	src := &staticSource{res: models.FetchResult{Markets: []models.RawMarket{
		market("ZERO-PRICE", "0", 90000, 1),
		market("LOW-VOL", "0.5", 5000, 1), // not strictly above the floor
	}}}
	r, _ := newRanker(src, nil)

	res := r.Rank(context.Background(), 0)
	if !res.Success || len(res.Markets) != 0 || res.Markets == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Timestamp == nil {
		t.Fatalf("timestamp missing")
	}
}

func TestRankFiltersSortsAndKeepsOrderOnTies(t *testing.T) {
	src := &staticSource{res: models.FetchResult{Markets: []models.RawMarket{
		market("A", "0.5", 6000, 0),    // score 60
		market("NO-PRICE", "0", 9e5, 0), // dropped
		market("B", "0.4", 9000, 0),    // score 90
		market("C", "0.3", 6000, 0),    // score 60, after A
		{"ticker": "LIQ", "last_price_dollars": "0.2", "volume": json.Number("0"), "liquidity": json.Number("7000")}, // score 70
		market("TINY", "0.9", 100, 0), // dropped
	}}}
	r, an := newRanker(src, nil)

	res := r.Rank(context.Background(), 0)

	var ids []string
	for _, m := range res.Markets {
		ids = append(ids, m.ID)
	}
	if got, want := strings.Join(ids, ","), "B,LIQ,A,C"; got != want {
		t.Fatalf("order = %s, want %s", got, want)
	}
	if an.calls != 4 {
		t.Fatalf("analyzer calls = %d, want only survivors", an.calls)
	}
	for i := 1; i < len(res.Markets); i++ {
		if res.Markets[i-1].LiquidityScore < res.Markets[i].LiquidityScore {
			t.Fatalf("not sorted descending at %d", i)
		}
	}
}

func TestRankTruncatesToTopN(t *testing.T) {
	var raws []models.RawMarket
	for i := 0; i < 120; i++ {
		raws = append(raws, market(fmt.Sprintf("M%03d", i), "0.5", 5001+i*100, 0))
	}
	src := &staticSource{res: models.FetchResult{Markets: raws, Pages: 1}}
	r, _ := newRanker(src, nil)

	res := r.Rank(context.Background(), 0)
	if len(res.Markets) != 50 {
		t.Fatalf("len = %d", len(res.Markets))
	}

	if got := r.Rank(context.Background(), 10); len(got.Markets) != 10 {
		t.Fatalf("limit 10 returned %d", len(got.Markets))
	}
	if got := r.Rank(context.Background(), 500); len(got.Markets) != 50 {
		t.Fatalf("limit above cap returned %d", len(got.Markets))
	}
}

func TestRankPublishesSnapshot(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	src := &staticSource{res: models.FetchResult{Markets: []models.RawMarket{market("A", "0.5", 6000, 0)}}}
	r, _ := newRanker(src, pub)

	res := r.Rank(context.Background(), 0)
	r.Shutdown()

	if !res.Success {
		t.Fatalf("publisher failure leaked into result")
	}
	if len(pub.snapshots) != 1 || pub.snapshots[0][0].ID != "A" {
		t.Fatalf("snapshots = %+v", pub.snapshots)
	}
}

func TestRankPartialFetchStillRanks(t *testing.T) {
	src := &staticSource{res: models.FetchResult{
		Markets: []models.RawMarket{market("A", "0.5", 6000, 0)},
		Pages:   1,
		StopErr: errors.New("connection reset"),
	}}
	r, _ := newRanker(src, nil)

	if res := r.Rank(context.Background(), 0); !res.Success || len(res.Markets) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRankAfterShutdownSkipsPublishing(t *testing.T) {
	pub := &recordingPublisher{}
	src := &staticSource{res: models.FetchResult{Markets: []models.RawMarket{market("A", "0.5", 6000, 0)}}}
	r, _ := newRanker(src, pub)

	r.Rank(context.Background(), 0)
	r.Shutdown()

	res := r.Rank(context.Background(), 0)

	if !res.Success || len(res.Markets) != 1 {
		t.Fatalf("ranking after shutdown = %+v", res)
	}
	if len(pub.snapshots) != 1 {
		t.Fatalf("snapshots = %d, want only the one before shutdown", len(pub.snapshots))
	}
}
