// Package json decodes raw JSON event files into records and infers a typed
// dataset from them.
//
// Accepted layouts per file:
//
//   - a single object (one song record per file)
//   - newline-delimited objects (event logs)
//   - a top-level array of objects, when Options.AllowArrays is set
//
// Numbers are decoded with UseNumber so that millisecond epochs such as
// 1541990258796 keep full precision until schema inference decides between
// long and double.
package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Record is one decoded JSON object.
type Record map[string]any

// Options tunes decoding.
type Options struct {
	// AllowArrays expands a top-level array of objects into records.
	AllowArrays bool
}

// Decoder wraps encoding/json.Decoder with a record-oriented API.
type Decoder struct {
	dec *json.Decoder
	opt Options

	// pending holds objects from an expanded top-level array.
	pending []any
	// line counts top-level values read so far, for error messages.
	line int
}

// NewDecoder constructs a Decoder reading from r.
func NewDecoder(r io.Reader, opt Options) *Decoder {
	d := json.NewDecoder(r)
	d.UseNumber()
	return &Decoder{dec: d, opt: opt}
}

// Next returns the next object. Primitive top-level values are skipped.
// io.EOF is returned when the stream is exhausted.
func (d *Decoder) Next() (Record, error) {
	for {
		if len(d.pending) > 0 {
			v := d.pending[0]
			d.pending = d.pending[1:]
			m, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("json parser: value %d: array element is %T, want object", d.line, v)
			}
			return Record(m), nil
		}

		var raw any
		if err := d.dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("json parser: value %d: %w", d.line+1, err)
		}
		d.line++

		switch v := raw.(type) {
		case map[string]any:
			return Record(v), nil
		case []any:
			if !d.opt.AllowArrays {
				return nil, fmt.Errorf("json parser: value %d: top-level array encountered but arrays are not allowed", d.line)
			}
			d.pending = v
		default:
			continue
		}
	}
}

// DecodeAll reads every object from r.
func DecodeAll(r io.Reader, opt Options) ([]Record, error) {
	d := NewDecoder(r, opt)
	var out []Record
	for {
		rec, err := d.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		out = append(out, rec)
	}
}
