// Package engine is the compute context shared by every pipeline stage. It
// reads JSON inputs from local or object-store paths into datasets and writes
// datasets as partitioned Parquet tables in overwrite mode.
//
// Object-store credentials come only from Config; the engine never reads the
// process environment.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"starschema/internal/dataset"
	"starschema/internal/datasource"
	"starschema/internal/datasource/file"
	s3source "starschema/internal/datasource/s3"
	jsonparser "starschema/internal/parser/json"
	"starschema/internal/sink"
)

var (
	// ErrNoInput is returned by Read when a pattern matches no files.
	ErrNoInput = errors.New("no input files")
	// ErrWrite wraps every failure to stage or publish an output table.
	ErrWrite = errors.New("write failed")
)

// Credentials are static object-store credentials.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// IsZero reports whether no key pair was supplied.
func (c Credentials) IsZero() bool { return c.AccessKeyID == "" && c.SecretAccessKey == "" }

// Config configures a Context.
type Config struct {
	// Workers bounds concurrent file decodes. Defaults to GOMAXPROCS.
	Workers int
	// Region and Endpoint address the object store. Endpoint is only set for
	// S3-compatible stores; it enables path-style addressing.
	Region   string
	Endpoint string
	// Credentials, when empty, leave the SDK default chain in charge.
	Credentials Credentials
	// StagingDir is the local scratch root for object-store outputs.
	// Defaults to os.TempDir().
	StagingDir string
	// RunID names staged part files and staging directories.
	RunID string
	// AllowArrays accepts top-level JSON arrays of records.
	AllowArrays bool
	Logger      *zap.Logger

	// S3 and Uploader override the clients built from the fields above.
	S3       s3iface.S3API
	Uploader s3manageriface.UploaderAPI
}

// Written describes one published table.
type Written struct {
	Location string
	sink.TableStats
}

// Context reads and writes datasets. It is safe for concurrent use.
type Context struct {
	cfg   Config
	log   *zap.Logger
	local datasource.Source

	mu       sync.Mutex
	s3       s3iface.S3API
	uploader s3manageriface.UploaderAPI
	dests    map[string]sink.Destination
}

// New validates cfg and returns a ready Context. Object-store clients are
// created on first use.
func New(cfg Config) (*Context, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = os.TempDir()
	}
	if cfg.RunID == "" {
		return nil, fmt.Errorf("engine: run id is required")
	}
	if (cfg.Credentials.AccessKeyID == "") != (cfg.Credentials.SecretAccessKey == "") {
		return nil, fmt.Errorf("engine: access key id and secret access key must be set together")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Context{
		cfg:      cfg,
		log:      log,
		local:    file.NewLocal(),
		s3:       cfg.S3,
		uploader: cfg.Uploader,
		dests:    map[string]sink.Destination{},
	}, nil
}

func (c *Context) clients() (s3iface.S3API, s3manageriface.UploaderAPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s3 != nil && c.uploader != nil {
		return c.s3, c.uploader, nil
	}

	awsCfg := &aws.Config{}
	if c.cfg.Region != "" {
		awsCfg.Region = aws.String(c.cfg.Region)
	}
	if c.cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(c.cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if !c.cfg.Credentials.IsZero() {
		cr := c.cfg.Credentials
		awsCfg.Credentials = credentials.NewStaticCredentials(cr.AccessKeyID, cr.SecretAccessKey, cr.SessionToken)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: aws session: %w", err)
	}
	if c.s3 == nil {
		c.s3 = awss3.New(sess)
	}
	if c.uploader == nil {
		c.uploader = s3manager.NewUploaderWithClient(c.s3)
	}
	return c.s3, c.uploader, nil
}

func (c *Context) source(loc datasource.Location) (datasource.Source, error) {
	if loc.Scheme == datasource.SchemeFile {
		return c.local, nil
	}
	client, _, err := c.clients()
	if err != nil {
		return nil, err
	}
	return s3source.New(client), nil
}

// Read expands pattern, decodes every matching file concurrently and infers a
// single dataset over all records. Records keep file order (lexical) and
// in-file order.
func (c *Context) Read(ctx context.Context, name, pattern string) (*dataset.Dataset, error) {
	start := time.Now()
	loc, err := datasource.Parse(pattern)
	if err != nil {
		return nil, err
	}
	src, err := c.source(loc)
	if err != nil {
		return nil, err
	}
	files, err := src.List(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("engine: list %s: %w", pattern, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s matched nothing", ErrNoInput, pattern)
	}

	parts := make([][]jsonparser.Record, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for i, f := range files {
		g.Go(func() error {
			rc, err := src.Open(gctx, f)
			if err != nil {
				return err
			}
			defer rc.Close()
			recs, err := jsonparser.DecodeAll(rc, jsonparser.Options{AllowArrays: c.cfg.AllowArrays})
			if err != nil {
				return fmt.Errorf("engine: %s: %w", f, err)
			}
			parts[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	recs := make([]jsonparser.Record, 0, total)
	for _, p := range parts {
		recs = append(recs, p...)
	}
	ds := jsonparser.ToDataset(name, recs)
	c.log.Info("input read",
		zap.String("dataset", name),
		zap.String("pattern", pattern),
		zap.Int("files", len(files)),
		zap.Int("records", ds.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ds, nil
}

func (c *Context) destination(output string) (sink.Destination, error) {
	c.mu.Lock()
	d, ok := c.dests[output]
	c.mu.Unlock()
	if ok {
		return d, nil
	}

	loc, err := datasource.Parse(output)
	if err != nil {
		return nil, err
	}
	if loc.Scheme == datasource.SchemeFile {
		d = sink.NewLocal(loc.Path, c.cfg.RunID)
	} else {
		client, up, err := c.clients()
		if err != nil {
			return nil, err
		}
		d = sink.NewS3(client, up, loc.Bucket, strings.TrimSuffix(loc.Path, "/"), c.cfg.StagingDir, c.cfg.RunID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.dests[output]; ok {
		return existing, nil
	}
	c.dests[output] = d
	return d, nil
}

// Write stores ds as <output>/<table>/ partitioned by partitionBy, replacing
// whatever the table held before. Rows are staged completely before the
// previous content is removed.
func (c *Context) Write(ctx context.Context, ds *dataset.Dataset, output, table string, partitionBy ...string) (Written, error) {
	start := time.Now()
	dest, err := c.destination(output)
	if err != nil {
		return Written{}, fmt.Errorf("%w: %s: %w", ErrWrite, table, err)
	}
	staged := dest.StagingDir(table)
	if err := os.RemoveAll(staged); err != nil {
		return Written{}, fmt.Errorf("%w: %s: %w", ErrWrite, table, err)
	}

	stats, err := sink.Stage(ctx, ds, staged, partitionBy, c.cfg.RunID)
	if err != nil {
		_ = os.RemoveAll(staged)
		return Written{}, fmt.Errorf("%w: %s: %w", ErrWrite, table, err)
	}
	if err := dest.Replace(ctx, table, staged); err != nil {
		return Written{}, fmt.Errorf("%w: %s: %w", ErrWrite, table, err)
	}

	w := Written{Location: dest.Location(table), TableStats: stats}
	c.log.Info("table written",
		zap.String("table", table),
		zap.String("location", w.Location),
		zap.Strings("partition_by", partitionBy),
		zap.Int64("rows", stats.Rows),
		zap.Int("partitions", stats.Partitions),
		zap.Int("files", stats.Files),
		zap.Duration("elapsed", time.Since(start)),
	)
	return w, nil
}

// Close removes staging state left by this run.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for out, d := range c.dests {
		if err := d.Cleanup(); err != nil {
			errs = append(errs, fmt.Errorf("engine: cleanup %s: %w", out, err))
		}
	}
	return errors.Join(errs...)
}
