package dataset

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/zeebo/xxh3"
)

// Distinct removes rows that are identical across every column, keeping the
// first occurrence and preserving input order. Rows are bucketed by an xxh3
// fingerprint and compared value by value inside a bucket, so a hash
// collision never drops a distinct row.
func (d *Dataset) Distinct() *Dataset {
	buckets := make(map[uint64][]int, len(d.rows))
	out := make([]Row, 0, len(d.rows))
	h := xxh3.New()

	for _, r := range d.rows {
		fp := fingerprint(h, r)
		dup := false
		for _, j := range buckets[fp] {
			if rowsEqual(out[j], r) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		buckets[fp] = append(buckets[fp], len(out))
		out = append(out, r)
	}
	return &Dataset{name: d.name, schema: d.schema, rows: out}
}

func rowsEqual(a, b Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !valuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// fingerprint hashes a tagged, length-prefixed encoding of the row so that
// ("ab","c") and ("a","bc") never share an encoding.
func fingerprint(h *xxh3.Hasher, r Row) uint64 {
	h.Reset()
	var buf [9]byte
	for _, v := range r {
		switch t := v.(type) {
		case nil:
			buf[0] = 0
			_, _ = h.Write(buf[:1])
		case string:
			buf[0] = 1
			binary.LittleEndian.PutUint64(buf[1:], uint64(len(t)))
			_, _ = h.Write(buf[:])
			_, _ = h.WriteString(t)
		case int64:
			buf[0] = 2
			binary.LittleEndian.PutUint64(buf[1:], uint64(t))
			_, _ = h.Write(buf[:])
		case int32:
			buf[0] = 3
			binary.LittleEndian.PutUint64(buf[1:], uint64(t))
			_, _ = h.Write(buf[:])
		case float64:
			buf[0] = 4
			binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(t))
			_, _ = h.Write(buf[:])
		case bool:
			buf[0] = 5
			if t {
				buf[1] = 1
			} else {
				buf[1] = 0
			}
			_, _ = h.Write(buf[:2])
		case time.Time:
			buf[0] = 6
			binary.LittleEndian.PutUint64(buf[1:], uint64(t.UnixNano()))
			_, _ = h.Write(buf[:])
		}
	}
	return h.Sum64()
}
