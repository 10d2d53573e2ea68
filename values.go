package explorer

import (
	"math"
	"strconv"
)

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case ValueNumber:
		return float64(n), true
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}

	return 0, false
}

// SafeNaN maps NaN and infinities to zero.
func SafeNaN(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}

	return v
}

func toValueNumber(v interface{}) ValueNumber {
	f, _ := toFloat(v)
	return ValueNumber(SafeNaN(f))
}

// toScalar unwraps driver values so rows compare and marshal cleanly.
func toScalar(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}

	return v
}
