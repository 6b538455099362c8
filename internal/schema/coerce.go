package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// default truthy/falsy sets (lowercased).
var (
	defaultTruthy = map[string]struct{}{"1": {}, "t": {}, "true": {}, "yes": {}, "y": {}}
	defaultFalsy  = map[string]struct{}{"0": {}, "f": {}, "false": {}, "no": {}, "n": {}}
)

// coerce converts raw to kind. Strings are trimmed before parsing; a value
// that does not parse is an error, never silently kept.
func coerce(raw any, kind Kind, layout string) (any, error) {
	switch kind {
	case KindInt:
		return toInt(raw)
	case KindFloat:
		return toFloat(raw)
	case KindBool:
		return toBool(raw)
	case KindDate:
		return toDate(raw, layout)
	case KindAny:
		return raw, nil
	default:
		return toString(raw)
	}
}

func toInt(raw any) (int, error) {
	switch t := raw.(type) {
	case int:
		return t, nil
	case int32:
		return int(t), nil
	case int64:
		return int(t), nil
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return 0, fmt.Errorf("%v is not an integer", t)
		}
		return int(t), nil
	case json.Number:
		i, err := strconv.ParseInt(t.String(), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", t.String())
		}
		return int(i), nil
	case string:
		s := strings.TrimSpace(t)
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", t)
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("type %T not int-convertible", raw)
	}
}

func toFloat(raw any) (float64, error) {
	switch t := raw.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", t.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("type %T not float-convertible", raw)
	}
}

func toBool(raw any) (bool, error) {
	switch t := raw.(type) {
	case bool:
		return t, nil
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		if _, ok := defaultTruthy[s]; ok {
			return true, nil
		}
		if _, ok := defaultFalsy[s]; ok {
			return false, nil
		}
		return false, fmt.Errorf("%q is not a recognized boolean", t)
	default:
		return false, fmt.Errorf("type %T not bool-convertible", raw)
	}
}

// toDate validates a timestamp and returns it as the trimmed source string;
// the platform receives timestamps exactly as they were written.
func toDate(raw any, layout string) (string, error) {
	switch t := raw.(type) {
	case time.Time:
		if layout == "" {
			layout = time.RFC3339
		}
		return t.Format(layout), nil
	case string:
		s := strings.TrimSpace(t)
		layouts := []string{time.RFC3339, "2006-01-02"}
		if layout != "" {
			layouts = []string{layout}
		}
		for _, l := range layouts {
			if _, err := time.Parse(l, s); err == nil {
				return s, nil
			}
		}
		return "", fmt.Errorf("invalid date %q", t)
	default:
		return "", fmt.Errorf("type %T not date-convertible", raw)
	}
}

func toString(raw any) (string, error) {
	switch raw.(type) {
	case map[string]any, []any:
		return "", fmt.Errorf("type %T is not a scalar", raw)
	}
	return FormatValue(raw), nil
}

// FormatValue renders a scalar in its flat string form, the inverse of the
// coercions above.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}
