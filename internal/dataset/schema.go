// Package dataset is the in-memory table abstraction the pipeline is built on.
//
// A Dataset is an immutable value: a name, an ordered Schema, and a slice of
// rows aligned to that schema. Every operation (Rename, Filter, Distinct,
// Select, WithColumn, Join) returns a new Dataset and never mutates the
// receiver's rows in place.
//
// Cell values are restricted to a small closed set of Go types so that
// equality, hashing, and columnar encoding stay simple:
//
//	String    -> string
//	Long      -> int64
//	Int       -> int32
//	Double    -> float64
//	Boolean   -> bool
//	Timestamp -> time.Time
//
// nil is a valid value for every kind and means SQL NULL.
package dataset

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the logical type of a column.
type Kind int

const (
	String Kind = iota
	Long
	Int
	Double
	Boolean
	Timestamp
)

// String returns the engine-style type name used in schema listings.
func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Long:
		return "long"
	case Int:
		return "integer"
	case Double:
		return "double"
	case Boolean:
		return "boolean"
	case Timestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field is a single named, typed column.
type Field struct {
	Name string
	Kind Kind
}

// Schema is the ordered list of columns of a dataset.
type Schema []Field

// Index returns the position of the named column or -1.
func (s Schema) Index(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Has reports whether the schema contains the named column.
func (s Schema) Has(name string) bool { return s.Index(name) >= 0 }

// Names returns the column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.Name
	}
	return out
}

// Field returns the named field and whether it exists.
func (s Schema) Field(name string) (Field, bool) {
	if i := s.Index(name); i >= 0 {
		return s[i], true
	}
	return Field{}, false
}

// TreeString renders the schema the way dataframe engines print it:
//
//	root
//	 |-- artist_id: string (nullable = true)
//	 |-- year: long (nullable = true)
func (s Schema) TreeString() string {
	var b strings.Builder
	b.WriteString("root\n")
	for _, f := range s {
		fmt.Fprintf(&b, " |-- %s: %s (nullable = true)\n", f.Name, f.Kind)
	}
	return b.String()
}

// Row is one record aligned to a Schema.
type Row []any

// clone returns a shallow copy of the row with extra spare capacity.
func (r Row) clone(extra int) Row {
	out := make(Row, len(r), len(r)+extra)
	copy(out, r)
	return out
}

// KindOf reports the Kind a Go value maps to. ok is false for nil and for
// values outside the supported set.
func KindOf(v any) (Kind, bool) {
	switch v.(type) {
	case string:
		return String, true
	case int64:
		return Long, true
	case int32:
		return Int, true
	case float64:
		return Double, true
	case bool:
		return Boolean, true
	case time.Time:
		return Timestamp, true
	default:
		return 0, false
	}
}

// valuesEqual compares two cell values with NULL == NULL semantics, which is
// what whole-row de-duplication needs.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}
