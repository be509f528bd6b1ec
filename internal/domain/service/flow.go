package service

import (
	"context"

	"KalshiFlow/internal/domain/models"
)

// FlowAnalyzer derives liquidity and flow indicators from one raw market.
type FlowAnalyzer interface {
	Analyze(m models.RawMarket) models.AnalyzedMarket
}

// RequestSigner produces the authentication headers for one outbound request.
type RequestSigner interface {
	Sign(method, path string) (models.SignedHeaders, error)
	HasCredentials() bool
}

// RateLimiter decides whether a caller identified by key may proceed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfterSeconds int, err error)
}
