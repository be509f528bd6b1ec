package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"KalshiFlow/internal/domain/models"
	"KalshiFlow/internal/service/ratelimit"
	xlogger "KalshiFlow/pkg/logger"

	"github.com/labstack/echo/v4"
)

type stubRanker struct {
	res       models.MarketsResult
	lastLimit int
	calls     int
}

func (s *stubRanker) Rank(_ context.Context, limit int) models.MarketsResult {
	s.calls++
	s.lastLimit = limit
	return s.res
}

type stubLimiter struct {
	allow bool
	retry int
	err   error
}

func (s stubLimiter) Allow(context.Context, string) (bool, int, error) {
	return s.allow, s.retry, s.err
}

func newEcho(h *MarketsEchoHandler) *echo.Echo {
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

// decodeFailure checks the listing shape of a rejected request and returns its message.
func decodeFailure(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, rec.Body.String())
	}
	if body["success"] != false {
		t.Fatalf("success = %v in %s", body["success"], rec.Body.String())
	}
	if m, ok := body["markets"].([]any); !ok || len(m) != 0 {
		t.Fatalf("markets = %#v", body["markets"])
	}
	msg, _ := body["message"].(string)
	if msg == "" {
		t.Fatalf("message missing in %s", rec.Body.String())
	}
	return msg
}

func TestMarketsSuccess(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	r := &stubRanker{res: models.MarketsResult{
		Success:   true,
		Markets:   []models.AnalyzedMarket{{ID: "KXA", Platform: "Kalshi", LiquidityScore: 88}},
		Timestamp: &ts,
	}}
	e := newEcho(NewMarketsEchoHandler(xlogger.NewNop(), r, nil, nil))

	rec := do(e, "/api/markets")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["success"] != true || body["timestamp"] != "2025-01-02T03:04:05Z" {
		t.Fatalf("unexpected body %v", body)
	}
	if _, ok := body["message"]; ok {
		t.Fatalf("message present on success")
	}
	markets := body["markets"].([]any)
	first := markets[0].(map[string]any)
	if first["id"] != "KXA" || first["liquidityScore"] != float64(88) {
		t.Fatalf("unexpected market %v", first)
	}
	if r.lastLimit != 50 {
		t.Fatalf("default limit = %d", r.lastLimit)
	}
}

func TestMarketsFailureShape(t *testing.T) {
	r := &stubRanker{res: models.MarketsResult{Success: false, Markets: []models.AnalyzedMarket{}, Message: "No markets fetched from Kalshi API"}}
	e := newEcho(NewMarketsEchoHandler(xlogger.NewNop(), r, nil, nil))

	rec := do(e, "/api/markets")
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK || body["success"] != false || body["message"] != "No markets fetched from Kalshi API" {
		t.Fatalf("code=%d body=%v", rec.Code, body)
	}
	if m, ok := body["markets"].([]any); !ok || len(m) != 0 {
		t.Fatalf("markets = %#v", body["markets"])
	}
	if _, ok := body["timestamp"]; ok {
		t.Fatalf("timestamp present on failure")
	}
}

func TestMarketsLimitParam(t *testing.T) {
	r := &stubRanker{res: models.MarketsResult{Success: true, Markets: []models.AnalyzedMarket{}}}
	e := newEcho(NewMarketsEchoHandler(xlogger.NewNop(), r, nil, nil))

	if rec := do(e, "/api/markets?limit=5"); rec.Code != http.StatusOK || r.lastLimit != 5 {
		t.Fatalf("code=%d limit=%d", rec.Code, r.lastLimit)
	}
	calls := r.calls
	for _, target := range []string{"/api/markets?limit=0", "/api/markets?limit=51", "/api/markets?limit=x"} {
		rec := do(e, target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: code = %d", target, rec.Code)
			continue
		}
		decodeFailure(t, rec)
	}
	if msg := decodeFailure(t, do(e, "/api/markets?limit=51")); !strings.Contains(msg, "limit") {
		t.Fatalf("message = %q", msg)
	}
	if r.calls != calls {
		t.Fatalf("ranker called for invalid requests")
	}
}

func TestMarketsRateLimited(t *testing.T) {
	r := &stubRanker{}
	e := newEcho(NewMarketsEchoHandler(xlogger.NewNop(), r, stubLimiter{allow: false, retry: 7}, nil))

	rec := do(e, "/api/markets")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("code = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "7" {
		t.Fatalf("retry-after = %q", rec.Header().Get("Retry-After"))
	}
	decodeFailure(t, rec)
	if r.calls != 0 {
		t.Fatalf("ranker called while throttled")
	}
}

func TestMarketsLimiterFailureFailsOpen(t *testing.T) {
	r := &stubRanker{res: models.MarketsResult{Success: true, Markets: []models.AnalyzedMarket{}}}
	e := newEcho(NewMarketsEchoHandler(xlogger.NewNop(), r, stubLimiter{err: errors.New("redis down")}, nil))

	if rec := do(e, "/api/markets"); rec.Code != http.StatusOK || r.calls != 1 {
		t.Fatalf("code=%d calls=%d", rec.Code, r.calls)
	}
}

func TestHealth(t *testing.T) {
	for _, creds := range []bool{true, false} {
		h := NewMarketsEchoHandler(xlogger.NewNop(), &stubRanker{}, stubLimiter{allow: false}, func() bool { return creds })
		h.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

		rec := do(newEcho(h), "/health")
		var body models.HealthStatus
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if rec.Code != http.StatusOK || body.Status != "healthy" || body.HasAPIKeys != creds {
			t.Fatalf("creds=%v: code=%d body=%+v", creds, rec.Code, body)
		}
	}
}

func TestMarketsBurstThenThrottledKeepsListingShape(t *testing.T) {
	r := &stubRanker{res: models.MarketsResult{Success: true, Markets: []models.AnalyzedMarket{}}}
	e := newEcho(NewMarketsEchoHandler(xlogger.NewNop(), r, ratelimit.New(1, 5), nil))

	for i := 1; i <= 7; i++ {
		rec := do(e, "/api/markets")
		if i <= 5 {
			if rec.Code != http.StatusOK {
				t.Fatalf("request %d: code = %d", i, rec.Code)
			}
			continue
		}
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("request %d: code = %d", i, rec.Code)
		}
		if rec.Header().Get("Retry-After") == "" {
			t.Fatalf("request %d: Retry-After missing", i)
		}
		decodeFailure(t, rec)
	}
	if r.calls != 5 {
		t.Fatalf("ranker calls = %d", r.calls)
	}
}
