package answer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// number converts a decoded JSON value to float64. Numeric strings are
// accepted because small models often quote numbers. NaN and infinities are
// rejected.
func number(v any) (float64, bool) {
	f, ok := rawNumber(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func rawNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// confidence reads the "confidence" key clamped into [0, 1].
func confidence(obj map[string]any) (float64, bool) {
	v, ok := obj["confidence"]
	if !ok || v == nil {
		return 0, false
	}
	f, ok := number(v)
	if !ok {
		return 0, false
	}
	return clamp(f), true
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// str returns the first non-empty string value among keys. Numbers and
// booleans are formatted; other types are skipped.
func str(obj map[string]any, keys ...string) (string, string) {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch x := v.(type) {
		case string:
			s = x
		case json.Number:
			s = x.String()
		case bool:
			s = strconv.FormatBool(x)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s, k
		}
	}
	return "", ""
}

// stringList returns v as a string list, accepting a single string too.
func stringList(v any) []string {
	switch x := v.(type) {
	case string:
		return []string{x}
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			switch y := e.(type) {
			case string:
				out = append(out, y)
			case map[string]any:
				if s, _ := str(y, "category", "name", "type"); s != "" {
					out = append(out, s)
				}
			default:
				out = append(out, fmt.Sprint(y))
			}
		}
		return out
	}
	return nil
}

// plain converts json.Number values back to float64 so payload extras
// encode like ordinary numbers.
func plain(v any) any {
	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = plain(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plain(e)
		}
		return out
	}
	return v
}
