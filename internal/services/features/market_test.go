package features

import (
	"encoding/json"
	"math"
	"testing"

	"KalshiFlow/internal/domain/models"
)

func TestNumber(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{nil, 0, false},
		{json.Number("120000"), 120000, true},
		{json.Number("0.65"), 0.65, true},
		{"0.6500", 0.65, true},
		{" 12 ", 12, true},
		{"", 0, false},
		{"n/a", 0, false},
		{"NaN", 0, false},
		{float64(3.5), 3.5, true},
		{math.Inf(1), 0, false},
		{42, 42, true},
		{int64(7), 7, true},
		{true, 0, false},
		{map[string]any{}, 0, false},
	}
	for _, tc := range cases {
		got, ok := Number(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("Number(%#v) = (%v, %v), want (%v, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFirstNonZero(t *testing.T) {
	m := models.RawMarket{
		"volume":    json.Number("0"),
		"liquidity": json.Number("8000"),
	}
	if got := FirstNonZero(m, "volume", "liquidity"); got != 8000 {
		t.Fatalf("got %v", got)
	}
	if got := FirstNonZero(models.RawMarket{"volume": nil}, "volume", "liquidity"); got != 0 {
		t.Fatalf("got %v", got)
	}
	if got := FirstNonZero(models.RawMarket{"volume": json.Number("6000"), "liquidity": json.Number("9")}, "volume", "liquidity"); got != 6000 {
		t.Fatalf("got %v", got)
	}
}

func TestRound(t *testing.T) {
	cases := []struct {
		x      float64
		places int32
		want   float64
	}{
		{8.333333333333334, 1, 8.3},
		{65.00000000000001, 1, 65.0},
		{0.02, 4, 0.02},
		{0.25, 1, 0.2},   // exact tie, even
		{0.35, 1, 0.3},   // double sits below the tie
		{2.675, 2, 2.67}, // double sits below the tie
		{-12.25, 1, -12.2},
		{math.NaN(), 1, 0},
	}
	for _, tc := range cases {
		if got := Round(tc.x, tc.places); got != tc.want {
			t.Errorf("Round(%v, %d) = %v, want %v", tc.x, tc.places, got, tc.want)
		}
	}
}

func TestRoundInt(t *testing.T) {
	cases := map[float64]int{
		0.5:   0,
		1.5:   2,
		2.5:   2,
		99.4:  99,
		99.6:  100,
		100:   100,
		63.49: 63,
	}
	for in, want := range cases {
		if got := RoundInt(in); got != want {
			t.Errorf("RoundInt(%v) = %d, want %d", in, got, want)
		}
	}
}
