package reshape

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// cellKind classifies a raw table cell
type cellKind int

const (
	cellNumeric cellKind = iota
	cellMissing
	cellInvalid
)

// coerceNumeric deterministically converts an unknown cell to a float.
// nil, empty strings and NaN are missing; infinities are invalid.
func coerceNumeric(raw interface{}) (float64, cellKind) {
	var v float64
	switch t := raw.(type) {
	case nil:
		return 0, cellMissing
	case float64:
		v = t
	case float32:
		v = float64(t)
	case int:
		v = float64(t)
	case int8:
		v = float64(t)
	case int16:
		v = float64(t)
	case int32:
		v = float64(t)
	case int64:
		v = float64(t)
	case uint:
		v = float64(t)
	case uint8:
		v = float64(t)
	case uint16:
		v = float64(t)
	case uint32:
		v = float64(t)
	case uint64:
		v = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, cellInvalid
		}
		v = f
	case string:
		clean := strings.TrimSpace(t)
		if clean == "" || strings.EqualFold(clean, "nan") || strings.EqualFold(clean, "na") {
			return 0, cellMissing
		}
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return 0, cellInvalid
		}
		v = f
	default:
		return 0, cellInvalid
	}

	if math.IsNaN(v) {
		return 0, cellMissing
	}
	if math.IsInf(v, 0) {
		return 0, cellInvalid
	}
	return v, cellNumeric
}

// identifier converts a subject, region or group cell to its string key
func identifier(raw interface{}) string {
	switch t := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case json.Number:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}
