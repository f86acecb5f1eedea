package dataset

import "fmt"

// Dataset is an immutable, named set of rows conforming to a Schema.
type Dataset struct {
	name   string
	schema Schema
	rows   []Row
}

// New builds a dataset. Rows are used as given; callers must not modify them
// afterwards.
func New(name string, schema Schema, rows []Row) *Dataset {
	s := make(Schema, len(schema))
	copy(s, schema)
	return &Dataset{name: name, schema: s, rows: rows}
}

// Name returns the diagnostic name of the dataset (e.g. "song_data").
func (d *Dataset) Name() string { return d.name }

// Schema returns a copy of the dataset schema.
func (d *Dataset) Schema() Schema {
	s := make(Schema, len(d.schema))
	copy(s, d.schema)
	return s
}

// Rows exposes the underlying rows. Treat them as read-only.
func (d *Dataset) Rows() []Row { return d.rows }

// Len returns the row count.
func (d *Dataset) Len() int { return len(d.rows) }

// Named returns the same rows under a different diagnostic name.
func (d *Dataset) Named(name string) *Dataset {
	return &Dataset{name: name, schema: d.schema, rows: d.rows}
}

// Value returns the named column of row i, or nil when the column is absent.
func (d *Dataset) Value(i int, column string) any {
	idx := d.schema.Index(column)
	if idx < 0 {
		return nil
	}
	return d.rows[i][idx]
}

// Require returns a *SchemaError listing every requested column the dataset
// does not carry.
func (d *Dataset) Require(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if !d.schema.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Dataset: d.name, Missing: missing, Schema: d.Schema()}
	}
	return nil
}

// Rename renames columns according to pairs of (old, new) names. A pair whose
// old column is absent is ignored, matching withColumnRenamed semantics.
func (d *Dataset) Rename(pairs ...[2]string) *Dataset {
	s := d.Schema()
	for _, p := range pairs {
		if i := s.Index(p[0]); i >= 0 {
			s[i].Name = p[1]
		}
	}
	return &Dataset{name: d.name, schema: s, rows: d.rows}
}

// Filter keeps the rows for which keep returns true.
func (d *Dataset) Filter(keep func(Row) bool) *Dataset {
	out := make([]Row, 0, len(d.rows))
	for _, r := range d.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return &Dataset{name: d.name, schema: d.schema, rows: out}
}

// Where keeps the rows whose column equals value. Rows where the column is
// NULL never match.
func (d *Dataset) Where(column string, value any) (*Dataset, error) {
	if err := d.Require(column); err != nil {
		return nil, err
	}
	idx := d.schema.Index(column)
	return d.Filter(func(r Row) bool {
		return r[idx] != nil && valuesEqual(r[idx], value)
	}), nil
}

// Select projects the named columns, in the given order.
func (d *Dataset) Select(columns ...string) (*Dataset, error) {
	if err := d.Require(columns...); err != nil {
		return nil, err
	}
	idx := make([]int, len(columns))
	s := make(Schema, len(columns))
	for i, c := range columns {
		idx[i] = d.schema.Index(c)
		s[i] = d.schema[idx[i]]
	}
	out := make([]Row, len(d.rows))
	for i, r := range d.rows {
		nr := make(Row, len(idx))
		for j, k := range idx {
			nr[j] = r[k]
		}
		out[i] = nr
	}
	return &Dataset{name: d.name, schema: s, rows: out}, nil
}

// WithColumn appends (or replaces) a column computed from each row. fn sees
// the row as laid out by the receiver's schema.
func (d *Dataset) WithColumn(name string, kind Kind, fn func(Row) any) (*Dataset, error) {
	s := d.Schema()
	pos := s.Index(name)
	if pos < 0 {
		s = append(s, Field{Name: name, Kind: kind})
	} else {
		s[pos].Kind = kind
	}

	out := make([]Row, len(d.rows))
	for i, r := range d.rows {
		v := fn(r)
		if v != nil {
			if k, ok := KindOf(v); !ok || k != kind {
				return nil, fmt.Errorf("dataset %q: column %s: value %T does not match kind %s", d.name, name, v, kind)
			}
		}
		nr := r.clone(1)
		if pos < 0 {
			nr = append(nr, v)
		} else {
			nr[pos] = v
		}
		out[i] = nr
	}
	return &Dataset{name: d.name, schema: s, rows: out}, nil
}

// Getter returns an accessor for the named column, for use inside Filter and
// WithColumn callbacks.
func (d *Dataset) Getter(column string) (func(Row) any, error) {
	if err := d.Require(column); err != nil {
		return nil, err
	}
	idx := d.schema.Index(column)
	return func(r Row) any { return r[idx] }, nil
}
