package util

import (
	"encoding/json"
	"strconv"
	"strings"
)

func StringPtr(v string) *string { return &v }

func FloatPtr(v float64) *float64 { return &v }

// ToFloat coerces the scalar shapes that show up in extracted documents and
// decoded JSON. A false result means the value stays in its raw form.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// FormatScalar renders a value the way the legacy export did: numbers without
// a forced decimal tail, everything else via its raw string form.
func FormatScalar(v any) string {
	if v == nil {
		return ""
	}
	if f, ok := ToFloat(v); ok {
		if s, isStr := v.(string); isStr {
			_ = f
			return strings.TrimSpace(s)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if s, ok := v.(string); ok {
		return s
	}
	blob, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(blob)
}
