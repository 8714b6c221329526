package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// IntensityOf validates an intensity arriving as an untyped value (decoded
// JSON, CLI input). Only numeric kinds are accepted; strings, booleans, nil,
// NaN and infinities are rejected even when a string happens to look numeric.
func IntensityOf(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if !isFinite(f) {
		return 0, false
	}
	return f, true
}

// ParseIntensity parses a textual intensity such as an HTTP query parameter.
func ParseIntensity(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !isFinite(f) {
		return 0, false
	}
	return f, true
}
