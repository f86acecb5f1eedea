// Package catalog persists run reports: one row per published table plus one
// summary row per run, in a table of the configured storage backend.
package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"starschema/internal/pipeline"
	"starschema/internal/storage"
)

// DefaultTable is used when the configuration names none.
const DefaultTable = "etl_runs"

// RunRow is the table_name of the per-run summary row.
const RunRow = "_run"

var columns = []string{
	"run_id", "table_name", "job", "status", "output_path",
	"rows", "partitions", "files", "started_at", "finished_at", "error",
}

// Definition returns the catalog table layout.
func Definition(table string) storage.TableDef {
	return storage.TableDef{
		FQN: table,
		Columns: []storage.ColumnDef{
			{Name: "run_id", Type: storage.TypeText, PrimaryKey: true},
			{Name: "table_name", Type: storage.TypeText, PrimaryKey: true},
			{Name: "job", Type: storage.TypeText},
			{Name: "status", Type: storage.TypeText},
			{Name: "output_path", Type: storage.TypeText, Nullable: true},
			{Name: "rows", Type: storage.TypeBigInt},
			{Name: "partitions", Type: storage.TypeInt},
			{Name: "files", Type: storage.TypeInt},
			{Name: "started_at", Type: storage.TypeTimestamp},
			{Name: "finished_at", Type: storage.TypeTimestamp},
			{Name: "error", Type: storage.TypeText, Nullable: true},
		},
	}
}

// Catalog writes run reports through a storage.Repository.
type Catalog struct {
	repo storage.Repository
	log  *zap.Logger
}

// Open connects to the backend named by cfg.Kind and creates the catalog
// table when missing.
func Open(ctx context.Context, cfg storage.Config, log *zap.Logger) (*Catalog, error) {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if log == nil {
		log = zap.NewNop()
	}
	repo, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", cfg.Kind, err)
	}
	if err := storage.EnsureTable(ctx, cfg.Kind, repo, Definition(cfg.Table)); err != nil {
		repo.Close()
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return &Catalog{repo: repo, log: log.With(zap.String("catalog", cfg.Kind+":"+cfg.Table))}, nil
}

// New wraps an already-open repository whose table exists.
func New(repo storage.Repository, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{repo: repo, log: log}
}

// Rows converts a report into catalog rows aligned with the table columns.
func Rows(rep *pipeline.Report) [][]any {
	status := "success"
	var errText any
	if !rep.Succeeded() {
		status = "failed"
		errText = rep.Err
	}

	out := make([][]any, 0, len(rep.Tables)+1)
	var total int64
	for _, t := range rep.Tables {
		total += t.Rows
		out = append(out, []any{
			rep.RunID, t.Table, rep.Job, "published", t.Location,
			t.Rows, int32(t.Partitions), int32(t.Files),
			rep.StartedAt, rep.FinishedAt, nil,
		})
	}
	out = append(out, []any{
		rep.RunID, RunRow, rep.Job, status, nil,
		total, int32(0), int32(0),
		rep.StartedAt, rep.FinishedAt, errText,
	})
	return out
}

// Record stores rep. Failed runs are recorded too.
func (c *Catalog) Record(ctx context.Context, rep *pipeline.Report) error {
	n, err := c.repo.CopyFrom(ctx, columns, Rows(rep))
	if err != nil {
		return fmt.Errorf("catalog: record run %s: %w", rep.RunID, err)
	}
	c.log.Info("run recorded", zap.String("run_id", rep.RunID), zap.Int64("rows", n))
	return nil
}

// Close releases the repository.
func (c *Catalog) Close() { c.repo.Close() }
