package dataset

import (
	"fmt"
	"strings"
)

// JoinKey pairs a left-side column with the right-side column it must equal.
type JoinKey struct {
	Left  string
	Right string
}

// JoinOptions tunes InnerJoin.
type JoinOptions struct {
	// Fold, when set, is applied to string key values on both sides before
	// comparison. nil means exact, case-sensitive matching.
	Fold func(string) string

	// FirstMatch keeps only the first right-side row (in right dataset order)
	// for each key, so every left row produces at most one output row.
	FirstMatch bool
}

// JoinStats describes a completed join.
type JoinStats struct {
	// AmbiguousKeys counts right-side keys that matched more than one row.
	AmbiguousKeys int
}

// InnerJoin joins d (left) with right on equality of every key pair. Rows
// with a NULL in any key column never match. The output schema is the left
// schema followed by the right schema; overlapping column names are a schema
// mismatch. Output order follows the left dataset.
func (d *Dataset) InnerJoin(right *Dataset, keys []JoinKey, opts JoinOptions) (*Dataset, JoinStats, error) {
	var stats JoinStats
	if len(keys) == 0 {
		return nil, stats, fmt.Errorf("dataset %q: join requires at least one key", d.name)
	}

	leftCols := make([]string, len(keys))
	rightCols := make([]string, len(keys))
	for i, k := range keys {
		leftCols[i] = k.Left
		rightCols[i] = k.Right
	}
	if err := d.Require(leftCols...); err != nil {
		return nil, stats, err
	}
	if err := right.Require(rightCols...); err != nil {
		return nil, stats, err
	}

	var dupes []string
	for _, f := range right.schema {
		if d.schema.Has(f.Name) {
			dupes = append(dupes, f.Name)
		}
	}
	if len(dupes) > 0 {
		return nil, stats, &SchemaError{
			Dataset: d.name + "_join_" + right.name,
			Missing: dupes,
			Schema:  append(d.Schema(), right.schema...),
			Reason:  "ambiguous columns " + strings.Join(dupes, ", "),
		}
	}

	leftIdx := indexes(d.schema, leftCols)
	rightIdx := indexes(right.schema, rightCols)

	index := make(map[string][]int, len(right.rows))
	for i, r := range right.rows {
		k, ok := joinKey(r, rightIdx, opts.Fold)
		if !ok {
			continue
		}
		index[k] = append(index[k], i)
		if len(index[k]) == 2 {
			stats.AmbiguousKeys++
		}
	}

	schema := append(d.Schema(), right.schema...)
	out := make([]Row, 0, len(d.rows))
	for _, l := range d.rows {
		k, ok := joinKey(l, leftIdx, opts.Fold)
		if !ok {
			continue
		}
		matches := index[k]
		if opts.FirstMatch && len(matches) > 1 {
			matches = matches[:1]
		}
		for _, ri := range matches {
			nr := make(Row, 0, len(schema))
			nr = append(nr, l...)
			nr = append(nr, right.rows[ri]...)
			out = append(out, nr)
		}
	}
	return &Dataset{name: d.name + "_join_" + right.name, schema: schema, rows: out}, stats, nil
}

func indexes(s Schema, cols []string) []int {
	out := make([]int, len(cols))
	for i, c := range cols {
		out[i] = s.Index(c)
	}
	return out
}

// joinKey builds a composite lookup key. Components are length-prefixed so a
// separator inside a value cannot alias another key.
func joinKey(r Row, idx []int, fold func(string) string) (string, bool) {
	var b strings.Builder
	for _, i := range idx {
		v := r[i]
		if v == nil {
			return "", false
		}
		s, isStr := v.(string)
		if !isStr {
			s = fmt.Sprint(v)
		} else if fold != nil {
			s = fold(s)
		}
		fmt.Fprintf(&b, "%d:%s|", len(s), s)
	}
	return b.String(), true
}
