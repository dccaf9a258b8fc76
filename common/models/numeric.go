package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Float coerces a scalar from an untrusted payload into a float64.
// Numbers and numeric-looking strings resolve; anything else (nil, bools,
// objects, device error strings such as "Response Timed Out", NaN, Inf) is absent.
func Float(v any) Optional[float64] {
	var f float64
	switch x := v.(type) {
	case nil:
		return None[float64]()
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return None[float64]()
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return None[float64]()
		}
		f = parsed
	default:
		return None[float64]()
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return None[float64]()
	}
	return Some(f)
}

// Int coerces a scalar into an int64, truncating fractional values.
// Integer-looking inputs are parsed exactly so millisecond epochs keep full precision.
func Int(v any) Optional[int64] {
	switch x := v.(type) {
	case int:
		return Some(int64(x))
	case int32:
		return Some(int64(x))
	case int64:
		return Some(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return Some(i)
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return Some(i)
		}
	}

	f, ok := Float(v).Get()
	if !ok || f >= math.MaxInt64 || f <= math.MinInt64 {
		return None[int64]()
	}
	return Some(int64(f))
}

// String coerces a scalar identifier into its string form. Empty strings,
// bools and composite values are absent; numbers keep their decimal spelling.
func String(v any) Optional[string] {
	switch x := v.(type) {
	case string:
		if x == "" {
			return None[string]()
		}
		return Some(x)
	case json.Number:
		return Some(x.String())
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return None[string]()
		}
		return Some(strconv.FormatFloat(x, 'f', -1, 64))
	case int:
		return Some(strconv.Itoa(x))
	case int64:
		return Some(strconv.FormatInt(x, 10))
	default:
		return None[string]()
	}
}

// Round rounds f to the given number of decimal places.
func Round(f float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(f*scale) / scale
}
