// Package datasource resolves input path patterns to readable objects.
//
// A pattern is either a local filesystem glob ("data/log_data/*.json") or an
// object-store URL whose key part is a glob ("s3a://bucket/song_data/*/*/*/*.json").
// Both are handled uniformly through Source.
package datasource

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Source lists and opens the objects a pattern refers to.
type Source interface {
	// List returns the locations matching pattern, sorted lexically.
	List(ctx context.Context, pattern string) ([]string, error)
	// Open opens one location returned by List.
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// Scheme values returned by Parse.
const (
	SchemeFile = "file"
	SchemeS3   = "s3"
)

// Location is a parsed path or pattern.
type Location struct {
	Scheme string
	// Bucket is empty for SchemeFile.
	Bucket string
	// Path is the local path or the object key (no leading slash).
	Path string
}

// String renders the location back in canonical form (s3a/s3n are rewritten
// to s3).
func (l Location) String() string {
	if l.Scheme == SchemeS3 {
		return "s3://" + l.Bucket + "/" + l.Path
	}
	return l.Path
}

// Join appends elem to the location path with exactly one separator.
func (l Location) Join(elem string) Location {
	p := l.Path
	if p != "" && !strings.HasSuffix(p, "/") {
		p += "/"
	}
	l.Path = p + strings.TrimPrefix(elem, "/")
	return l
}

// Parse splits a path into scheme, bucket and path. "s3://", "s3a://" and
// "s3n://" select the object store; "file://" and bare paths are local.
func Parse(raw string) (Location, error) {
	if raw == "" {
		return Location{}, fmt.Errorf("datasource: empty path")
	}
	for _, prefix := range []string{"s3://", "s3a://", "s3n://"} {
		if !strings.HasPrefix(raw, prefix) {
			continue
		}
		rest := strings.TrimPrefix(raw, prefix)
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return Location{}, fmt.Errorf("datasource: %q has no bucket", raw)
		}
		return Location{Scheme: SchemeS3, Bucket: bucket, Path: key}, nil
	}
	if i := strings.Index(raw, "://"); i >= 0 && !strings.HasPrefix(raw, "file://") {
		return Location{}, fmt.Errorf("datasource: unsupported scheme in %q", raw)
	}
	return Location{Scheme: SchemeFile, Path: strings.TrimPrefix(raw, "file://")}, nil
}

// LiteralPrefix returns the part of a glob before its first meta character.
func LiteralPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, `*?[{\`); i >= 0 {
		return pattern[:i]
	}
	return pattern
}
