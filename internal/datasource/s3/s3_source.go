// Package s3 implements an object-store data source on top of aws-sdk-go.
//
// Patterns are matched against object keys with gobwas/glob using '/' as the
// separator, so "song_data/*/*/*/*.json" matches exactly three directory
// levels below song_data, the same way a filesystem glob would.
package s3

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/aws/aws-sdk-go/aws"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/gobwas/glob"

	"starschema/internal/datasource"
)

// Source lists and reads objects through an S3 API client.
type Source struct {
	client s3iface.S3API
}

var _ datasource.Source = (*Source)(nil)

// New wraps an S3 client.
func New(client s3iface.S3API) *Source { return &Source{client: client} }

// List returns "s3://bucket/key" locations whose key matches the glob part of
// pattern. Listing is narrowed to the literal prefix before the first meta
// character.
func (s *Source) List(ctx context.Context, pattern string) ([]string, error) {
	loc, err := datasource.Parse(pattern)
	if err != nil {
		return nil, err
	}
	if loc.Scheme != datasource.SchemeS3 {
		return nil, fmt.Errorf("s3: %q is not an object-store pattern", pattern)
	}
	g, err := glob.Compile(loc.Path, '/')
	if err != nil {
		return nil, fmt.Errorf("s3: compile pattern %q: %w", loc.Path, err)
	}

	var out []string
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(loc.Bucket),
		Prefix: aws.String(datasource.LiteralPrefix(loc.Path)),
	}
	err = s.client.ListObjectsV2PagesWithContext(ctx, input, func(page *awss3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			if g.Match(key) {
				out = append(out, datasource.Location{Scheme: datasource.SchemeS3, Bucket: loc.Bucket, Path: key}.String())
			}
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("s3: list s3://%s/%s: %w", loc.Bucket, aws.StringValue(input.Prefix), err)
	}
	sort.Strings(out)
	return out, nil
}

// Open streams one object.
func (s *Source) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	loc, err := datasource.Parse(location)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObjectWithContext(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Path),
	})
	if err != nil {
		return nil, fmt.Errorf("s3: get %s: %w", loc, err)
	}
	return obj.Body, nil
}
