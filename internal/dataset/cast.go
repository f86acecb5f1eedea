package dataset

import (
	"math"
	"strconv"
	"strings"
)

// Cast converts the named column to kind. Values that cannot be represented
// become NULL rather than failing the whole dataset; a missing column is a
// schema mismatch.
func (d *Dataset) Cast(column string, kind Kind) (*Dataset, error) {
	if err := d.Require(column); err != nil {
		return nil, err
	}
	idx := d.schema.Index(column)
	if d.schema[idx].Kind == kind {
		return d, nil
	}
	return d.WithColumn(column, kind, func(r Row) any { return castValue(r[idx], kind) })
}

// twoTo63 bounds the float64 values that convert to int64 exactly.
const twoTo63 = float64(1 << 63)

func castValue(v any, kind Kind) any {
	switch kind {
	case String:
		switch t := v.(type) {
		case string:
			return t
		case int64:
			return strconv.FormatInt(t, 10)
		case int32:
			return strconv.FormatInt(int64(t), 10)
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(t)
		}
	case Long:
		switch t := v.(type) {
		case int64:
			return t
		case int32:
			return int64(t)
		case float64:
			// NaN fails both comparisons.
			if !(t >= -twoTo63 && t < twoTo63) {
				return nil
			}
			return int64(t)
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
				return n
			}
		}
	case Int:
		if n, ok := castValue(v, Long).(int64); ok && n >= math.MinInt32 && n <= math.MaxInt32 {
			return int32(n)
		}
	case Double:
		switch t := v.(type) {
		case float64:
			return t
		case int64:
			return float64(t)
		case int32:
			return float64(t)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return f
			}
		}
	case Boolean:
		switch t := v.(type) {
		case bool:
			return t
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
				return b
			}
		}
	}
	return nil
}
