package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"starschema/internal/catalog"
	"starschema/internal/config"
	"starschema/internal/engine"
	"starschema/internal/lock"
	"starschema/internal/metrics"
	"starschema/internal/metrics/datadog"
	"starschema/internal/metrics/prompush"
	"starschema/internal/pipeline"
	"starschema/internal/storage"
)

// run executes one job against the active path set. The destination lock is
// held for the whole run. The catalog is written and metrics are flushed even
// when the pipeline fails.
func run(ctx context.Context, cfg *config.Config, log *zap.Logger) (*pipeline.Report, error) {
	paths, err := cfg.Paths()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log = log.With(zap.String("job", cfg.Job), zap.String("mode", cfg.Mode))
	log.Info("starting run",
		zap.String("run_id", runID),
		zap.String("song_input", paths.SongInput),
		zap.String("log_input", paths.LogInput),
		zap.String("output", paths.Output),
		zap.Int("workers", cfg.Engine.Workers),
		zap.String("timezone", loc.String()),
	)

	closeMetrics := setupMetrics(cfg, log)
	defer closeMetrics()

	cat, err := openCatalog(ctx, cfg.Catalog, log)
	if err != nil {
		return nil, err
	}
	if cat != nil {
		defer cat.Close()
	}

	locker, err := lock.New(lock.Config{Kind: cfg.Lock.Kind, Dir: cfg.Lock.Dir, DSN: cfg.Lock.DSN})
	if err != nil {
		return nil, err
	}
	held, err := locker.Acquire(ctx, paths.Output)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", paths.Output, err)
	}
	defer func() {
		if err := held.Release(); err != nil {
			log.Warn("release lock", zap.Error(err))
		}
	}()

	eng, err := engine.New(engine.Config{
		Workers:  cfg.Engine.Workers,
		Region:   cfg.Engine.Region,
		Endpoint: cfg.Engine.Endpoint,
		Credentials: engine.Credentials{
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			SessionToken:    cfg.AWS.SessionToken,
		},
		StagingDir:  cfg.Engine.StagingDir,
		RunID:       runID,
		AllowArrays: cfg.Engine.AllowArrays,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.Warn("engine cleanup", zap.Error(err))
		}
	}()

	ids, err := pipeline.NewSnowflakeIDs(cfg.IDGen.Node)
	if err != nil {
		return nil, err
	}
	p, err := pipeline.New(eng, pipeline.Options{
		Job:          cfg.Job,
		RunID:        runID,
		Location:     loc,
		FoldJoinKeys: cfg.Join.FoldKeys,
		IDs:          ids,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}

	rep, runErr := p.Run(ctx, pipeline.Paths{
		SongInput: paths.SongInput,
		LogInput:  paths.LogInput,
		Output:    paths.Output,
	})
	logReport(log, rep)

	if cat != nil {
		// The run context may be canceled; the record must still land.
		if err := cat.Record(context.WithoutCancel(ctx), rep); err != nil {
			return rep, errors.Join(runErr, err)
		}
	}
	return rep, runErr
}

// setupMetrics installs the configured backend and returns the function that
// flushes it. Backend init failures fall back to the nop backend.
func setupMetrics(cfg *config.Config, log *zap.Logger) func() {
	nop := func() {}
	switch cfg.Metrics.Backend {
	case "pushgateway":
		b, err := prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL)
		if err != nil {
			log.Warn("metrics: failed to init prom push backend; using nop", zap.Error(err))
			return nop
		}
		log.Info("metrics enabled", zap.String("backend", "pushgateway"), zap.String("url", cfg.Metrics.PushgatewayURL))
		metrics.SetBackend(b)
		return func() {
			if err := metrics.Flush(); err != nil {
				log.Warn("metrics: flush error", zap.Error(err))
			}
		}

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       cfg.Metrics.DatadogAddr,
			Namespace:  "starschema.",
			GlobalTags: []string{"job:" + cfg.Job},
		})
		if err != nil {
			log.Warn("metrics: failed to init datadog backend; using nop", zap.Error(err))
			return nop
		}
		log.Info("metrics enabled", zap.String("backend", "datadog"), zap.String("addr", cfg.Metrics.DatadogAddr))
		metrics.SetBackend(b)
		return func() {
			if err := metrics.Flush(); err != nil {
				log.Warn("metrics: flush error", zap.Error(err))
			}
			_ = b.Close()
		}

	default:
		log.Debug("metrics disabled", zap.String("backend", cfg.Metrics.Backend))
		return nop
	}
}

// openCatalog returns nil when no catalog is configured.
func openCatalog(ctx context.Context, c config.CatalogConfig, log *zap.Logger) (*catalog.Catalog, error) {
	if c.Kind == "" || c.Kind == "none" {
		return nil, nil
	}
	return catalog.Open(ctx, storage.Config{Kind: c.Kind, DSN: c.DSN, Table: c.Table}, log)
}

func logReport(log *zap.Logger, rep *pipeline.Report) {
	if rep == nil {
		return
	}
	for _, t := range rep.Tables {
		log.Info("table published",
			zap.String("table", t.Table),
			zap.String("location", t.Location),
			zap.Int64("rows", t.Rows),
			zap.Int("partitions", t.Partitions),
			zap.Int("files", t.Files),
			zap.Duration("elapsed", t.Elapsed),
		)
	}
	if rep.AmbiguousSongKeys > 0 {
		log.Warn("ambiguous song keys joined to first match", zap.Int("keys", rep.AmbiguousSongKeys))
	}
	log.Info("run summary",
		zap.String("run_id", rep.RunID),
		zap.Bool("succeeded", rep.Succeeded()),
		zap.Int("tables", len(rep.Tables)),
		zap.Duration("elapsed", rep.FinishedAt.Sub(rep.StartedAt)),
	)
}
