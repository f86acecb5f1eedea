package json

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"starschema/internal/dataset"
)

// kindState accumulates what has been seen for one column.
type kindState struct {
	seen   bool
	kind   dataset.Kind
	values int
}

func (s *kindState) observe(k dataset.Kind) {
	s.values++
	if !s.seen {
		s.seen = true
		s.kind = k
		return
	}
	s.kind = widen(s.kind, k)
}

// widen returns the narrowest kind both a and b fit into.
func widen(a, b dataset.Kind) dataset.Kind {
	if a == b {
		return a
	}
	if (a == dataset.Long && b == dataset.Double) || (a == dataset.Double && b == dataset.Long) {
		return dataset.Double
	}
	return dataset.String
}

// valueKind classifies a decoded JSON value. ok is false for null.
func valueKind(v any) (dataset.Kind, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case string:
		return dataset.String, true
	case bool:
		return dataset.Boolean, true
	case json.Number:
		if isIntegral(t) {
			return dataset.Long, true
		}
		return dataset.Double, true
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return dataset.Long, true
		}
		return dataset.Double, true
	default:
		// Nested objects and arrays are carried as their JSON text.
		return dataset.String, true
	}
}

func isIntegral(n json.Number) bool {
	s := n.String()
	if strings.ContainsAny(s, ".eE") {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// InferSchema returns the union of all record keys, sorted by name, each
// typed with the narrowest kind that holds every non-null value. Columns that
// are null everywhere are typed as string.
func InferSchema(recs []Record) dataset.Schema {
	states := map[string]*kindState{}
	for _, r := range recs {
		for k, v := range r {
			st, ok := states[k]
			if !ok {
				st = &kindState{}
				states[k] = st
			}
			if kind, ok := valueKind(v); ok {
				st.observe(kind)
			}
		}
	}

	names := make([]string, 0, len(states))
	for k := range states {
		names = append(names, k)
	}
	sort.Strings(names)

	schema := make(dataset.Schema, len(names))
	for i, n := range names {
		st := states[n]
		kind := dataset.String
		if st.seen {
			kind = st.kind
		}
		schema[i] = dataset.Field{Name: n, Kind: kind}
	}
	return schema
}

// ToDataset infers a schema over recs and converts every record into a row
// aligned with it. Missing keys become NULL.
func ToDataset(name string, recs []Record) *dataset.Dataset {
	schema := InferSchema(recs)
	rows := make([]dataset.Row, len(recs))
	for i, r := range recs {
		row := make(dataset.Row, len(schema))
		for j, f := range schema {
			row[j] = convert(r[f.Name], f.Kind)
		}
		rows[i] = row
	}
	return dataset.New(name, schema, rows)
}

// convert coerces a decoded JSON value into the Go type of kind.
func convert(v any, kind dataset.Kind) any {
	if v == nil {
		return nil
	}
	switch kind {
	case dataset.Long:
		switch t := v.(type) {
		case json.Number:
			if n, err := t.Int64(); err == nil {
				return n
			}
		case float64:
			return int64(t)
		}
	case dataset.Double:
		switch t := v.(type) {
		case json.Number:
			if f, err := t.Float64(); err == nil {
				return f
			}
		case float64:
			return t
		}
	case dataset.Boolean:
		if b, ok := v.(bool); ok {
			return b
		}
	case dataset.String:
		return stringify(v)
	}
	return nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
