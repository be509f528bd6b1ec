package models

import "time"

// PlatformKalshi tags every analyzed market.
const PlatformKalshi = "Kalshi"

// RawMarket is one market record exactly as the Kalshi API returned it.
// Numeric fields may arrive as JSON numbers, dollar strings or null.
type RawMarket map[string]any

// Ticker returns the market ticker, or "" when absent.
func (m RawMarket) Ticker() string {
	return m.String("ticker")
}

// String returns the string under key, or "" for absent or non-string values.
func (m RawMarket) String(key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// Header names of the Kalshi request signature.
const (
	HeaderAccessKey       = "KALSHI-ACCESS-KEY"
	HeaderAccessSignature = "KALSHI-ACCESS-SIGNATURE"
	HeaderAccessTimestamp = "KALSHI-ACCESS-TIMESTAMP"
)

// SignedHeaders holds the three authentication headers of one request. They are
// single-use: the timestamp is part of what was signed.
type SignedHeaders map[string]string

// AnalyzedMarket is the flow view of a single market.
type AnalyzedMarket struct {
	ID             string  `json:"id"`
	Platform       string  `json:"platform"`
	Title          string  `json:"title"`
	CurrentPrice   float64 `json:"currentPrice"` // 0-100, one decimal
	PriceChange    float64 `json:"priceChange"`  // percent, one decimal
	Volume24h      float64 `json:"volume24h"`
	Trades24h      float64 `json:"trades24h"` // open interest
	Unusual        bool    `json:"unusual"`
	RawVolume      float64 `json:"rawVolume"`
	Spread         float64 `json:"spread"` // fraction of a dollar, four decimals
	TightSpread    bool    `json:"tightSpread"`
	HasImbalance   bool    `json:"hasImbalance"`
	LiquidityScore int     `json:"liquidityScore"`
}

// FetchResult is what a paginated fetch produced. StopErr explains an early stop
// and is nil when pagination ended naturally or hit the page cap.
type FetchResult struct {
	Markets []RawMarket
	Pages   int
	StopErr error

	// StopReason names how the walk ended ("exhausted", "page_cap", "signing", "status_503", ...).
	StopReason string
	// SigningFailed is set when the walk ended because a request could not be signed.
	SigningFailed bool
}

// MarketsResult is the body of the market listing endpoint.
type MarketsResult struct {
	Success   bool             `json:"success"`
	Markets   []AnalyzedMarket `json:"markets"`
	Timestamp *time.Time       `json:"timestamp,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// HealthStatus is the body of the health endpoint.
type HealthStatus struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	HasAPIKeys bool      `json:"has_api_keys"`
}

// MarketsRequest carries the optional listing parameters.
type MarketsRequest struct {
	Limit int `query:"limit" default:"50" validate:"gte=1,lte=50"`
}
