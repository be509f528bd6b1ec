package analytics

import (
	"math"

	"KalshiFlow/internal/domain/models"
	dservice "KalshiFlow/internal/domain/service"
	"KalshiFlow/internal/services/features"
)

// FlowPolicy holds the flow heuristics' thresholds and weights.
type FlowPolicy struct {
	TightSpreadMax      float64 // spread below this (and above 0) is tight
	ImbalanceRatio      float64 // volume/open interest above this is an imbalance
	TightSpreadBonus    float64
	VolumeDivisor       float64
	OpenInterestDivisor float64
	WhaleVolume         float64
	TightActiveVolume   float64
	ImbalanceVolume     float64
	MaxPriceChange      float64 // |price change| must stay strictly below
}

// DefaultFlowPolicy returns the production thresholds.
func DefaultFlowPolicy() FlowPolicy {
	return FlowPolicy{
		TightSpreadMax:      0.04,
		ImbalanceRatio:      0.3,
		TightSpreadBonus:    40,
		VolumeDivisor:       100,
		OpenInterestDivisor: 50,
		WhaleVolume:         100000,
		TightActiveVolume:   50000,
		ImbalanceVolume:     30000,
		MaxPriceChange:      1000,
	}
}

const maxLiquidityScore = 100

// FlowAnalyzer scores a market's liquidity and flags unusual activity. It is
// pure: the same record always yields the same result.
type FlowAnalyzer struct {
	policy FlowPolicy
}

// NewFlowAnalyzer creates an analyzer with policy.
func NewFlowAnalyzer(policy FlowPolicy) *FlowAnalyzer {
	return &FlowAnalyzer{policy: policy}
}

var _ dservice.FlowAnalyzer = (*FlowAnalyzer)(nil)

// Analyze derives the flow view of m. Missing or malformed fields count as zero.
func (a *FlowAnalyzer) Analyze(m models.RawMarket) models.AnalyzedMarket {
	p := a.policy

	currentPrice := features.Float(m, "last_price_dollars") * 100
	volume := features.FirstNonZero(m, "volume", "liquidity")
	openInterest := features.Float(m, "open_interest")

	priceChange := a.priceChange(currentPrice, features.Float(m, "previous_yes_bid_dollars")*100)

	yesBid := features.Float(m, "yes_bid")
	yesAsk := features.Float(m, "yes_ask")
	spread := 0.0
	if yesAsk > yesBid {
		spread = (yesAsk - yesBid) / 100
	}
	tight := spread > 0 && spread < p.TightSpreadMax

	volToOI := 0.0
	if openInterest > 0 {
		volToOI = volume / openInterest
	}
	imbalance := volToOI > p.ImbalanceRatio

	raw := volume/p.VolumeDivisor + openInterest/p.OpenInterestDivisor
	if tight {
		raw += p.TightSpreadBonus
	}

	unusual := volume > p.WhaleVolume ||
		(tight && volume > p.TightActiveVolume) ||
		(imbalance && volume > p.ImbalanceVolume)

	title := m.String("title")
	if title == "" {
		title = "Unknown Market"
	}

	return models.AnalyzedMarket{
		ID:             m.Ticker(),
		Platform:       models.PlatformKalshi,
		Title:          title,
		CurrentPrice:   features.Round(currentPrice, 1),
		PriceChange:    priceChange,
		Volume24h:      volume,
		Trades24h:      openInterest,
		Unusual:        unusual,
		RawVolume:      volume,
		Spread:         features.Round(spread, 4),
		TightSpread:    tight,
		HasImbalance:   imbalance,
		LiquidityScore: liquidityScore(raw),
	}
}

// priceChange is the percent move from prev to current, rounded to one decimal;
// 0 when either side is not positive or when the move is implausibly large.
// The bound applies to the rounded value, so 999.96 never surfaces as 1000.0.
func (a *FlowAnalyzer) priceChange(current, prev float64) float64 {
	if prev <= 0 || current <= 0 {
		return 0
	}
	change := features.Round((current-prev)/prev*100, 1)
	if !(math.Abs(change) < a.policy.MaxPriceChange) {
		return 0
	}
	return change
}

func liquidityScore(raw float64) int {
	score := features.RoundInt(math.Min(maxLiquidityScore, raw))
	if score < 0 {
		return 0
	}
	return score
}
