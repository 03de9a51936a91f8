package query

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
)

// IntPtr is a helper function that returns a pointer to an int.
func IntPtr(i int) *int {
	return &i
}

// StringPtr is a helper function that returns a pointer to a string.
func StringPtr(s string) *string {
	return &s
}

// BoolPtr is a helper function that returns a pointer to a bool.
func BoolPtr(b bool) *bool {
	return &b
}

var plainNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// IsNumericString reports whether s is a plain decimal number. Hex, NaN and
// Inf spellings accepted by strconv are deliberately excluded.
func IsNumericString(s string) bool {
	return plainNumber.MatchString(s)
}

// ToFloat64 converts a value of various numeric types to a float64. It
// returns false when the value is not numeric.
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		if !IsNumericString(val) {
			return 0, false
		}
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil && !math.IsInf(f, 0)
	default:
		return 0, false
	}
}
