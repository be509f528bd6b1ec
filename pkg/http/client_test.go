package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSendAndParseDecodesNumbersAsJSONNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test") != "1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"volume": 120000, "price": "0.65"}`))
	}))
	defer srv.Close()

	var out map[string]interface{}
	err := NewClient().SendAndParse(context.Background(), &RequestOptions{
		Method:  MethodGet,
		URL:     srv.URL,
		Headers: map[string]string{"X-Test": "1"},
	}, &out)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, ok := out["volume"].(json.Number); !ok {
		t.Fatalf("volume decoded as %T", out["volume"])
	}
}

func TestSendAndParseReportsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad signature"}`))
	}))
	defer srv.Close()

	err := NewClient().SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, &struct{}{})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", se.StatusCode)
	}
}

func TestClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := NewClient(WithTimeout(50 * time.Millisecond))
	if c.Timeout() != 50*time.Millisecond {
		t.Fatalf("timeout = %s", c.Timeout())
	}
	if err := c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, nil); err == nil {
		t.Fatalf("expected timeout error")
	}
}
