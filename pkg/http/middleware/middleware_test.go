package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	applogger "KalshiFlow/pkg/logger"

	"github.com/labstack/echo/v4"
)

func newTestEcho() *echo.Echo {
	e := echo.New()
	l := applogger.NewNop()
	e.Use(Recover(l), RequestLogging(l))
	e.Use(CORS(CORSConfig{AllowOrigins: []string{"*"}, AllowMethods: []string{http.MethodGet}}))
	e.GET("/ok", func(c echo.Context) error {
		return c.String(http.StatusOK, RequestID(c))
	})
	e.GET("/panic", func(c echo.Context) error {
		panic("boom")
	})
	return e
}

func TestRequestLoggingAssignsID(t *testing.T) {
	e := newTestEcho()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))

	id := rec.Header().Get(echo.HeaderXRequestID)
	if id == "" || rec.Body.String() != id {
		t.Fatalf("request id not propagated: header=%q body=%q", id, rec.Body.String())
	}
}

func TestRequestLoggingKeepsCallerID(t *testing.T) {
	e := newTestEcho()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if got := rec.Header().Get(echo.HeaderXRequestID); got != "abc-123" {
		t.Fatalf("got %q", got)
	}
}

func TestRecoverReturns500(t *testing.T) {
	e := newTestEcho()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	e := newTestEcho()
	req := httptest.NewRequest(http.MethodOptions, "/ok", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "http://localhost:3000" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestStatusClass(t *testing.T) {
	cases := map[int]string{101: "1xx", 200: "2xx", 304: "3xx", 429: "4xx", 503: "5xx"}
	for code, want := range cases {
		if got := statusClass(code); got != want {
			t.Errorf("statusClass(%d) = %q, want %q", code, got, want)
		}
	}
}
