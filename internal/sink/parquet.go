// Package sink materializes datasets as hive-partitioned Parquet tables.
//
// Writing a table is two steps. Stage encodes the dataset into a local
// directory laid out as
//
//	<dir>/<col>=<value>/.../part-00000-<run>.snappy.parquet
//	<dir>/_SUCCESS
//
// with partition columns removed from the data files. A Destination then
// swaps the staged directory in for the previous table content. Nothing at
// the destination is touched until staging has fully succeeded.
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"starschema/internal/dataset"
)

// DefaultPartition is the directory value used for NULL partition values.
const DefaultPartition = "__HIVE_DEFAULT_PARTITION__"

// SuccessMarker is written last into every staged table directory.
const SuccessMarker = "_SUCCESS"

// parallelism passed to the parquet writer's marshal stage.
const writerParallelism = 4

// TableStats summarizes one staged table.
type TableStats struct {
	Rows       int64
	Partitions int
	Files      int
}

// partition is a group of rows sharing the same partition values.
type partition struct {
	path string
	rows []dataset.Row
}

// Stage writes ds into dir (which must not exist or be empty) partitioned by
// partitionBy. runID is embedded in file names.
func Stage(ctx context.Context, ds *dataset.Dataset, dir string, partitionBy []string, runID string) (TableStats, error) {
	var stats TableStats

	if err := ds.Require(partitionBy...); err != nil {
		return stats, err
	}
	schema := ds.Schema()

	isPart := make(map[int]bool, len(partitionBy))
	partIdx := make([]int, len(partitionBy))
	for i, c := range partitionBy {
		partIdx[i] = schema.Index(c)
		isPart[partIdx[i]] = true
	}
	var dataIdx []int
	var dataSchema dataset.Schema
	for i, f := range schema {
		if !isPart[i] {
			dataIdx = append(dataIdx, i)
			dataSchema = append(dataSchema, f)
		}
	}
	if len(dataSchema) == 0 {
		return stats, fmt.Errorf("sink: table %s has no data columns outside the partition columns", ds.Name())
	}
	md, err := Metadata(dataSchema)
	if err != nil {
		return stats, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return stats, fmt.Errorf("sink: create %s: %w", dir, err)
	}

	parts := group(ds.Rows(), schema, partIdx)
	if len(partitionBy) == 0 && len(parts) == 0 {
		// Unpartitioned empty tables still get one schema-only file.
		parts = []partition{{}}
	}

	for i, p := range parts {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		pdir := filepath.Join(dir, filepath.FromSlash(p.path))
		if err := os.MkdirAll(pdir, 0o755); err != nil {
			return stats, fmt.Errorf("sink: create %s: %w", pdir, err)
		}
		name := filepath.Join(pdir, fmt.Sprintf("part-%05d-%s.snappy.parquet", i, runID))
		if err := writeFile(name, md, p.rows, dataIdx); err != nil {
			return stats, err
		}
		stats.Files++
		stats.Rows += int64(len(p.rows))
	}
	if len(partitionBy) > 0 {
		stats.Partitions = len(parts)
	}

	if err := os.WriteFile(filepath.Join(dir, SuccessMarker), nil, 0o644); err != nil {
		return stats, fmt.Errorf("sink: write marker: %w", err)
	}
	return stats, nil
}

// group splits rows by partition path. Partitions are returned sorted by path;
// rows keep their input order within a partition.
func group(rows []dataset.Row, schema dataset.Schema, partIdx []int) []partition {
	if len(rows) == 0 {
		return nil
	}
	if len(partIdx) == 0 {
		return []partition{{rows: rows}}
	}
	byPath := map[string]*partition{}
	for _, r := range rows {
		segs := make([]string, len(partIdx))
		for i, idx := range partIdx {
			segs[i] = schema[idx].Name + "=" + PartitionValue(r[idx])
		}
		path := strings.Join(segs, "/")
		p, ok := byPath[path]
		if !ok {
			p = &partition{path: path}
			byPath[path] = p
		}
		p.rows = append(p.rows, r)
	}
	out := make([]partition, 0, len(byPath))
	for _, p := range byPath {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

// PartitionValue renders a cell as a partition directory value.
func PartitionValue(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		return DefaultPartition
	case string:
		s = t
	case int64:
		s = strconv.FormatInt(t, 10)
	case int32:
		s = strconv.FormatInt(int64(t), 10)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	case time.Time:
		s = t.Format("2006-01-02 15:04:05")
	default:
		s = fmt.Sprint(t)
	}
	if s == "" {
		return DefaultPartition
	}
	return escapePathName(s)
}

// escapePathName percent-encodes the characters that cannot appear inside a
// partition directory name.
func escapePathName(s string) string {
	const special = "\"#%'*/:=?\\\x7f{[]^"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || strings.IndexByte(special, c) >= 0 {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Metadata returns parquet-go CSV-writer column definitions for schema.
func Metadata(schema dataset.Schema) ([]string, error) {
	md := make([]string, len(schema))
	for i, f := range schema {
		var typ string
		switch f.Kind {
		case dataset.String:
			typ = "type=BYTE_ARRAY, convertedtype=UTF8"
		case dataset.Long:
			typ = "type=INT64"
		case dataset.Int:
			typ = "type=INT32"
		case dataset.Double:
			typ = "type=DOUBLE"
		case dataset.Boolean:
			typ = "type=BOOLEAN"
		case dataset.Timestamp:
			typ = "type=INT64, convertedtype=TIMESTAMP_MILLIS"
		default:
			return nil, fmt.Errorf("sink: column %s: unsupported kind %s", f.Name, f.Kind)
		}
		md[i] = fmt.Sprintf("name=%s, %s, repetitiontype=OPTIONAL", f.Name, typ)
	}
	return md, nil
}

func writeFile(name string, md []string, rows []dataset.Row, dataIdx []int) (err error) {
	fw, err := local.NewLocalFileWriter(name)
	if err != nil {
		return fmt.Errorf("sink: create %s: %w", name, err)
	}
	defer func() {
		if cerr := fw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("sink: close %s: %w", name, cerr)
		}
	}()

	pw, err := writer.NewCSVWriter(md, fw, writerParallelism)
	if err != nil {
		return fmt.Errorf("sink: parquet writer %s: %w", name, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	rec := make([]interface{}, len(dataIdx))
	for _, r := range rows {
		for j, idx := range dataIdx {
			rec[j] = encode(r[idx])
		}
		if err := pw.Write(rec); err != nil {
			return fmt.Errorf("sink: write %s: %w", name, err)
		}
		// The writer buffers the slice; hand it a fresh one for the next row.
		rec = make([]interface{}, len(dataIdx))
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("sink: finalize %s: %w", name, err)
	}
	return nil
}

// encode converts a cell into the Go value parquet-go expects for its
// physical type.
func encode(v any) interface{} {
	if t, ok := v.(time.Time); ok {
		return t.UnixMilli()
	}
	return v
}
