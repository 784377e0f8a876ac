package aggregate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// toString renders any decoded JSON value as text. Lists are joined with
// ", ". nil yields "".
func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case []string:
		return strings.Join(x, ", ")
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			parts = append(parts, toString(e))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(x)
	}
}

// stringOr returns def when the field is absent or null, else toString.
func stringOr(fields map[string]any, key, def string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return def
	}
	return toString(v)
}

// optionalString is nil for absent, null or empty values.
func optionalString(fields map[string]any, key string) *string {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil
	}
	s := strings.TrimSpace(toString(v))
	if s == "" {
		return nil
	}
	return &s
}

// stringList coerces a multi-value field to a slice. A lone scalar becomes a
// one-element slice; absent or null becomes empty.
func stringList(fields map[string]any, key string) []string {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil
	}
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			out = append(out, toString(e))
		}
		return out
	default:
		return []string{toString(x)}
	}
}

// completedValue keeps the status text as sent. Only the exact string "Yes"
// marks a row completed, so booleans render as true/false and lists keep
// their brackets.
func completedValue(fields map[string]any, key, def string) string {
	switch x := fields[key].(type) {
	case []any, []string:
		return "[" + toString(x) + "]"
	}
	return stringOr(fields, key, def)
}
