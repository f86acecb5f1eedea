// Package probe loads an input dataset and reports what the job would see:
// how many records matched, the inferred schema, per-column null counts and
// which required columns are missing. It is the dry-run counterpart of the
// normalizer stages and never writes anything.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"starschema/internal/dataset"
)

// Reader loads a named dataset from a glob pattern.
type Reader interface {
	Read(ctx context.Context, name, pattern string) (*dataset.Dataset, error)
}

// Column summarizes one inferred column.
type Column struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Nulls int    `json:"nulls"`
}

// Result is the outcome of probing one dataset.
type Result struct {
	Dataset string   `json:"dataset"`
	Pattern string   `json:"pattern"`
	Records int      `json:"records"`
	Columns []Column `json:"columns"`
	Missing []string `json:"missing,omitempty"`

	schema dataset.Schema
}

// OK reports whether every required column is present.
func (r *Result) OK() bool { return len(r.Missing) == 0 }

// Probe reads pattern through rd and checks it against required.
func Probe(ctx context.Context, rd Reader, name, pattern string, required []string) (*Result, error) {
	ds, err := rd.Read(ctx, name, pattern)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", name, err)
	}

	schema := ds.Schema()
	nulls := make([]int, len(schema))
	for _, row := range ds.Rows() {
		for i, v := range row {
			if v == nil {
				nulls[i]++
			}
		}
	}

	res := &Result{
		Dataset: name,
		Pattern: pattern,
		Records: ds.Len(),
		Columns: make([]Column, len(schema)),
		schema:  schema,
	}
	for i, f := range schema {
		res.Columns[i] = Column{Name: f.Name, Kind: f.Kind.String(), Nulls: nulls[i]}
	}
	for _, c := range required {
		if !schema.Has(c) {
			res.Missing = append(res.Missing, c)
		}
	}
	sort.Strings(res.Missing)
	return res, nil
}

// WriteText renders r for a terminal.
func (r *Result) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d records from %s\n", r.Dataset, r.Records, r.Pattern)
	b.WriteString(r.schema.TreeString())
	for _, c := range r.Columns {
		if c.Nulls > 0 {
			fmt.Fprintf(&b, "null %s: %d/%d\n", c.Name, c.Nulls, r.Records)
		}
	}
	if r.OK() {
		b.WriteString("required columns: ok\n")
	} else {
		fmt.Fprintf(&b, "required columns: missing %s\n", strings.Join(r.Missing, ", "))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON renders results as one indented JSON array.
func WriteJSON(w io.Writer, results []*Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
