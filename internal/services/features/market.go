package features

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"KalshiFlow/internal/domain/models"

	"github.com/shopspring/decimal"
)

// Number converts a raw JSON value to float64. Absent, null, non-numeric and
// non-finite values yield (0, false).
func Number(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return 0, false
		}
		f = d.InexactFloat64()
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		f = d.InexactFloat64()
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Float returns m[key] as a number, or 0.
func Float(m models.RawMarket, key string) float64 {
	f, _ := Number(m[key])
	return f
}

// FirstNonZero returns the first of keys whose value is a non-zero number, or 0.
func FirstNonZero(m models.RawMarket, keys ...string) float64 {
	for _, k := range keys {
		if f := Float(m, k); f != 0 {
			return f
		}
	}
	return 0
}

// Round rounds x to places decimals, ties to even, on the exact binary value
// of x. 2.675 therefore rounds to 2.67, since the double is just below the tie.
func Round(x float64, places int32) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	exact := strconv.FormatFloat(x, 'f', 1074, 64)
	d, err := decimal.NewFromString(exact)
	if err != nil {
		return x
	}
	return d.RoundBank(places).InexactFloat64()
}

// RoundInt rounds x to the nearest integer, ties to even.
func RoundInt(x float64) int {
	return int(Round(x, 0))
}
