package api

import (
	"context"
	"net/http"
	"time"

	"KalshiFlow/internal/domain/models"
	domsvc "KalshiFlow/internal/domain/service"
	xhttp "KalshiFlow/pkg/http"
	xlogger "KalshiFlow/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Ranker produces the ranked market listing.
type Ranker interface {
	Rank(ctx context.Context, limit int) models.MarketsResult
}

// MarketsEchoHandler serves the market listing and the health check.
type MarketsEchoHandler struct {
	logger   *xlogger.Logger
	ranker   Ranker
	limiter  domsvc.RateLimiter
	hasCreds func() bool
	now      func() time.Time
}

// NewMarketsEchoHandler creates the handler. limiter may be nil to disable throttling.
func NewMarketsEchoHandler(logger *xlogger.Logger, ranker Ranker, limiter domsvc.RateLimiter, hasCreds func() bool) *MarketsEchoHandler {
	return &MarketsEchoHandler{
		logger:   logger,
		ranker:   ranker,
		limiter:  limiter,
		hasCreds: hasCreds,
		now:      time.Now,
	}
}

func (h *MarketsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/markets", h.Markets, h.rateLimit)
	e.GET("/health", h.Health)
}

// Markets returns the top markets by liquidity score. The optional limit query
// parameter narrows the list below the default of 50.
func (h *MarketsEchoHandler) Markets(c echo.Context) error {
	req := &models.MarketsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.failure(c, xhttp.BadRequestError(verr[0].Message).WithParam("field", verr[0].Field))
	}

	res := h.ranker.Rank(c.Request().Context(), req.Limit)
	if !res.Success {
		h.logger.Warn("markets unavailable", xlogger.String("message", res.Message))
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, res)
}

// Health reports liveness and whether API credentials are configured.
func (h *MarketsEchoHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthStatus{
		Status:     "healthy",
		Timestamp:  h.now().UTC(),
		HasAPIKeys: h.hasCreds != nil && h.hasCreds(),
	})
}

// rateLimit throttles per client IP. Every listing costs up to three upstream
// pages. If the limiter backend fails the request is let through.
func (h *MarketsEchoHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.limiter == nil {
			return next(c)
		}
		ok, retryAfter, err := h.limiter.Allow(c.Request().Context(), c.RealIP())
		if err != nil {
			h.logger.Warn("rate limiter unavailable, allowing request", xlogger.Error(err))
			return next(c)
		}
		if !ok {
			return h.failure(c, xhttp.TooManyRequestsError(retryAfter))
		}
		return next(c)
	}
}

// failure answers with the listing body (success=false and the error message) so
// clients parse one shape whatever the status code.
func (h *MarketsEchoHandler) failure(c echo.Context, appErr *xhttp.AppError) error {
	h.logger.Debug("markets request rejected",
		xlogger.String("code", appErr.Code),
		xlogger.Int("status", appErr.Status),
	)
	xhttp.SetRetryAfter(c, appErr)
	return c.JSON(appErr.Status, models.MarketsResult{
		Success: false,
		Markets: []models.AnalyzedMarket{},
		Message: appErr.Message,
	})
}
