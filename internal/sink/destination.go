package sink

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

// Destination receives staged tables and replaces the previous content of a
// table with them (overwrite mode).
type Destination interface {
	// StagingDir returns the local directory a table should be staged into.
	StagingDir(table string) string
	// Replace removes everything currently stored for table and moves the
	// staged directory into its place.
	Replace(ctx context.Context, table, stagedDir string) error
	// Location renders where table lives, for logs and run reports.
	Location(table string) string
	// Cleanup removes leftover staging state.
	Cleanup() error
}

// Local writes tables under a directory on the local filesystem. Tables are
// staged inside <root>/_temporary/<run> so that the final rename stays on one
// filesystem.
type Local struct {
	root    string
	staging string
}

// NewLocal returns a local destination rooted at root.
func NewLocal(root, runID string) *Local {
	return &Local{root: root, staging: filepath.Join(root, "_temporary", runID)}
}

func (l *Local) StagingDir(table string) string { return filepath.Join(l.staging, table) }

func (l *Local) Location(table string) string { return filepath.Join(l.root, table) }

// Replace deletes the existing table directory and renames the staged one in.
func (l *Local) Replace(ctx context.Context, table, stagedDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := l.Location(table)
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("sink: remove %s: %w", target, err)
	}
	if err := os.Rename(stagedDir, target); err != nil {
		return fmt.Errorf("sink: move %s to %s: %w", stagedDir, target, err)
	}
	return nil
}

// Cleanup removes this run's staging directory and the shared _temporary
// parent when it is left empty.
func (l *Local) Cleanup() error {
	if err := os.RemoveAll(l.staging); err != nil {
		return err
	}
	// Fails harmlessly when another run still has content there.
	_ = os.Remove(filepath.Dir(l.staging))
	return nil
}

// S3 writes tables under s3://bucket/prefix. Tables are staged in a local
// temporary directory and uploaded with the s3manager uploader.
type S3 struct {
	client   s3iface.S3API
	uploader s3manageriface.UploaderAPI
	bucket   string
	prefix   string
	staging  string
}

// NewS3 returns an object-store destination. stagingRoot is a local scratch
// directory; the run id is appended to it.
func NewS3(client s3iface.S3API, uploader s3manageriface.UploaderAPI, bucket, prefix, stagingRoot, runID string) *S3 {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3{
		client:   client,
		uploader: uploader,
		bucket:   bucket,
		prefix:   prefix,
		staging:  filepath.Join(stagingRoot, "starschema-"+runID),
	}
}

func (d *S3) StagingDir(table string) string { return filepath.Join(d.staging, table) }

func (d *S3) Location(table string) string {
	return "s3://" + d.bucket + "/" + d.tablePrefix(table)
}

func (d *S3) tablePrefix(table string) string { return d.prefix + table + "/" }

// Replace deletes every object under the table prefix, then uploads the
// staged files. The staged directory is removed afterwards.
func (d *S3) Replace(ctx context.Context, table, stagedDir string) error {
	if err := d.deletePrefix(ctx, d.tablePrefix(table)); err != nil {
		return err
	}

	err := filepath.WalkDir(stagedDir, func(p string, e os.DirEntry, err error) error {
		if err != nil || e.IsDir() {
			return err
		}
		rel, err := filepath.Rel(stagedDir, p)
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		key := path.Join(d.tablePrefix(table), filepath.ToSlash(rel))
		if _, err := d.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket: aws.String(d.bucket),
			Key:    aws.String(key),
			Body:   f,
		}); err != nil {
			return fmt.Errorf("upload s3://%s/%s: %w", d.bucket, key, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	return os.RemoveAll(stagedDir)
}

// deletePrefix removes all objects under prefix in batches of up to 1000
// keys, the DeleteObjects limit.
func (d *S3) deletePrefix(ctx context.Context, prefix string) error {
	var keys []*s3.ObjectIdentifier
	err := d.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, &s3.ObjectIdentifier{Key: obj.Key})
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("sink: list s3://%s/%s: %w", d.bucket, prefix, err)
	}

	for len(keys) > 0 {
		n := min(len(keys), 1000)
		out, err := d.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(d.bucket),
			Delete: &s3.Delete{Objects: keys[:n], Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("sink: delete under s3://%s/%s: %w", d.bucket, prefix, err)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return fmt.Errorf("sink: delete s3://%s/%s: %s", d.bucket, aws.StringValue(e.Key), aws.StringValue(e.Message))
		}
		keys = keys[n:]
	}
	return nil
}

func (d *S3) Cleanup() error { return os.RemoveAll(d.staging) }
