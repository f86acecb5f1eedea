// Package pipeline turns raw song metadata and listening-event logs into a
// star schema: songs, artists, users and time dimensions plus the songplays
// fact table, each written as a partitioned Parquet table in overwrite mode.
//
// Stages run sequentially over in-memory datasets:
//
//	NormalizeSongs -> songs_table, artists_table
//	NormalizeLogs  -> users_table, time_table
//	BuildSongplays -> songplays_table
//
// The first failing stage aborts the run; tables already written stay in
// place.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"starschema/internal/dataset"
	"starschema/internal/engine"
	"starschema/internal/metrics"
)

// Engine is the compute context the stages read from and write to.
type Engine interface {
	Read(ctx context.Context, name, pattern string) (*dataset.Dataset, error)
	Write(ctx context.Context, ds *dataset.Dataset, output, table string, partitionBy ...string) (engine.Written, error)
}

// Paths are the inputs and the output root of one run.
type Paths struct {
	SongInput string
	LogInput  string
	Output    string
}

// Options tune a Pipeline. Zero values select the defaults noted per field.
type Options struct {
	// Job labels metrics and the run report. Default "starschema".
	Job string
	// RunID defaults to a random UUID.
	RunID string
	// Location is the zone calendar fields are computed in. Default UTC.
	Location *time.Location
	// FoldJoinKeys compares artist and title after FoldKey instead of
	// exactly.
	FoldJoinKeys bool
	// IDs defaults to snowflake node 1.
	IDs    IDGenerator
	Logger *zap.Logger
	Now    func() time.Time
}

// Pipeline runs the stages against an Engine.
type Pipeline struct {
	eng Engine
	opt Options
	log *zap.Logger
}

// New applies defaults to opt and returns a Pipeline.
func New(eng Engine, opt Options) (*Pipeline, error) {
	if eng == nil {
		return nil, fmt.Errorf("pipeline: engine is required")
	}
	if opt.Job == "" {
		opt.Job = "starschema"
	}
	if opt.RunID == "" {
		opt.RunID = uuid.NewString()
	}
	if opt.Location == nil {
		opt.Location = time.UTC
	}
	if opt.IDs == nil {
		ids, err := NewSnowflakeIDs(1)
		if err != nil {
			return nil, err
		}
		opt.IDs = ids
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	log := opt.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{eng: eng, opt: opt, log: log.With(zap.String("run_id", opt.RunID))}, nil
}

// Run executes every stage. The report is returned even on failure and lists
// the tables written before the error.
func (p *Pipeline) Run(ctx context.Context, paths Paths) (*Report, error) {
	rep := &Report{RunID: p.opt.RunID, Job: p.opt.Job, StartedAt: p.opt.Now()}
	err := p.run(ctx, paths, rep)
	rep.FinishedAt = p.opt.Now()
	if err != nil {
		rep.Err = err.Error()
		p.log.Error("run failed", zap.Error(err), zap.Int("tables_written", len(rep.Tables)))
		return rep, err
	}
	p.log.Info("run finished",
		zap.Int("song_records", rep.SongRecords),
		zap.Int("log_events", rep.LogEvents),
		zap.Duration("elapsed", rep.FinishedAt.Sub(rep.StartedAt)),
	)
	return rep, nil
}

func (p *Pipeline) run(ctx context.Context, paths Paths, rep *Report) error {
	var songs, logs, plays *dataset.Dataset

	err := p.step(ctx, "normalize_songs", func() (err error) {
		songs, err = p.NormalizeSongs(ctx, paths.SongInput)
		return err
	})
	if err != nil {
		return err
	}
	rep.SongRecords = songs.Len()

	// Both inputs must load before anything is overwritten.
	err = p.step(ctx, "normalize_logs", func() (err error) {
		logs, err = p.NormalizeLogs(ctx, paths.LogInput)
		return err
	})
	if err != nil {
		return err
	}
	rep.LogEvents = logs.Len()

	if err := p.step(ctx, "write_song_dimensions", func() error {
		return p.writeSongDimensions(ctx, songs, paths.Output, rep)
	}); err != nil {
		return err
	}

	if err := p.step(ctx, "write_log_dimensions", func() error {
		return p.writeLogDimensions(ctx, logs, paths.Output, rep)
	}); err != nil {
		return err
	}

	err = p.step(ctx, "build_songplays", func() error {
		var (
			stats dataset.JoinStats
			err   error
		)
		plays, stats, err = p.BuildSongplays(logs, songs)
		rep.AmbiguousSongKeys = stats.AmbiguousKeys
		return err
	})
	if err != nil {
		return err
	}

	return p.step(ctx, "write_songplays", func() error {
		return p.write(ctx, plays, paths.Output, SongplaysTable, rep, "year", "month")
	})
}

// step times fn and records it as one pipeline stage.
func (p *Pipeline) step(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	p.log.Debug("stage started", zap.String("stage", name))
	err := fn()
	d := time.Since(start)
	metrics.RecordStep(p.opt.Job, name, err, d)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	p.log.Info("stage finished", zap.String("stage", name), zap.Duration("elapsed", d))
	return nil
}

func (p *Pipeline) write(ctx context.Context, ds *dataset.Dataset, output, table string, rep *Report, partitionBy ...string) error {
	start := time.Now()
	w, err := p.eng.Write(ctx, ds, output, table, partitionBy...)
	if err != nil {
		return err
	}
	metrics.RecordRows(p.opt.Job, table, w.Rows)
	rep.Tables = append(rep.Tables, TableReport{
		Table:      table,
		Location:   w.Location,
		Rows:       w.Rows,
		Partitions: w.Partitions,
		Files:      w.Files,
		Elapsed:    time.Since(start),
	})
	return nil
}

// NormalizeSongs loads every song record matching pattern, renames the
// artist_* columns, fixes column kinds and removes whole-row duplicates.
func (p *Pipeline) NormalizeSongs(ctx context.Context, pattern string) (*dataset.Dataset, error) {
	raw, err := p.eng.Read(ctx, SongData, pattern)
	if err != nil {
		return nil, err
	}
	metrics.RecordInput(p.opt.Job, SongData, raw.Len())
	if err := raw.Require(songInputColumns...); err != nil {
		return nil, err
	}
	songs, err := castAll(raw.Rename(songRenames...), songKinds)
	if err != nil {
		return nil, err
	}
	p.log.Info("song data schema", zap.String("schema", songs.Schema().TreeString()))

	before := songs.Len()
	songs = songs.Distinct()
	p.log.Info("song data normalized", zap.Int("records", before), zap.Int("distinct", songs.Len()))
	return songs, nil
}

// SongsDimension projects the songs table.
func SongsDimension(songs *dataset.Dataset) (*dataset.Dataset, error) {
	d, err := songs.Select(songsColumns...)
	if err != nil {
		return nil, err
	}
	return d.Named(SongsTable), nil
}

// ArtistsDimension projects the artists table. An artist appears once per
// distinct song record it has.
func ArtistsDimension(songs *dataset.Dataset) (*dataset.Dataset, error) {
	d, err := songs.Select(artistsColumns...)
	if err != nil {
		return nil, err
	}
	return d.Named(ArtistsTable), nil
}

func (p *Pipeline) writeSongDimensions(ctx context.Context, songs *dataset.Dataset, output string, rep *Report) error {
	s, err := SongsDimension(songs)
	if err != nil {
		return err
	}
	if err := p.write(ctx, s, output, SongsTable, rep, "year", "artist_id"); err != nil {
		return err
	}
	a, err := ArtistsDimension(songs)
	if err != nil {
		return err
	}
	return p.write(ctx, a, output, ArtistsTable, rep)
}

// NormalizeLogs loads every event matching pattern, renames columns, keeps
// NextSong events, removes whole-row duplicates and derives ts_timestamp from
// the millisecond epoch ts.
func (p *Pipeline) NormalizeLogs(ctx context.Context, pattern string) (*dataset.Dataset, error) {
	raw, err := p.eng.Read(ctx, LogData, pattern)
	if err != nil {
		return nil, err
	}
	metrics.RecordInput(p.opt.Job, LogData, raw.Len())
	if err := raw.Require(logInputColumns...); err != nil {
		return nil, err
	}
	logs, err := castAll(raw.Rename(logRenames...), logKinds)
	if err != nil {
		return nil, err
	}
	p.log.Info("log data schema", zap.String("schema", logs.Schema().TreeString()))

	events := logs.Len()
	if logs, err = logs.Where("page", "NextSong"); err != nil {
		return nil, err
	}
	plays := logs.Len()
	logs = logs.Distinct()

	ts, err := logs.Getter("ts")
	if err != nil {
		return nil, err
	}
	logs, err = logs.WithColumn("ts_timestamp", dataset.Timestamp, func(r dataset.Row) any { return EpochMillis(ts(r)) })
	if err != nil {
		return nil, err
	}
	p.log.Info("log data normalized",
		zap.Int("events", events),
		zap.Int("song_plays", plays),
		zap.Int("distinct", logs.Len()),
	)
	return logs, nil
}

// UsersDimension projects the users table: one row per play event, so a
// user seen at several levels appears once per level and event.
func UsersDimension(logs *dataset.Dataset) (*dataset.Dataset, error) {
	d, err := logs.Select(usersColumns...)
	if err != nil {
		return nil, err
	}
	return d.Named(UsersTable), nil
}

// TimeDimension builds one row per distinct event timestamp with its
// calendar decomposition in loc.
func TimeDimension(logs *dataset.Dataset, loc *time.Location) (*dataset.Dataset, error) {
	d, err := logs.Select("ts_timestamp")
	if err != nil {
		return nil, err
	}
	d = d.Rename([2]string{"ts_timestamp", "start_time"}).Distinct()
	d, err = withCalendar(d, "start_time", loc, "hour", "day", "week", "month", "year", "weekday")
	if err != nil {
		return nil, err
	}
	return d.Named(TimeTable), nil
}

func (p *Pipeline) writeLogDimensions(ctx context.Context, logs *dataset.Dataset, output string, rep *Report) error {
	u, err := UsersDimension(logs)
	if err != nil {
		return err
	}
	if err := p.write(ctx, u, output, UsersTable, rep); err != nil {
		return err
	}
	t, err := TimeDimension(logs, p.opt.Location)
	if err != nil {
		return err
	}
	return p.write(ctx, t, output, TimeTable, rep, "year", "month")
}

// BuildSongplays joins play events to songs on artist = name and
// song = title, assigns songplay ids and projects the fact table. A play
// whose key matches several songs is joined to the first of them, so the
// fact table never has more rows than logs.
func (p *Pipeline) BuildSongplays(logs, songs *dataset.Dataset) (*dataset.Dataset, dataset.JoinStats, error) {
	var stats dataset.JoinStats
	left, err := logs.Select("ts_timestamp", "user_id", "level", "session_id", "user_location", "user_agent", "artist", "song")
	if err != nil {
		return nil, stats, err
	}
	right, err := songs.Select("song_id", "artist_id", "name", "title")
	if err != nil {
		return nil, stats, err
	}

	opts := dataset.JoinOptions{FirstMatch: true}
	if p.opt.FoldJoinKeys {
		opts.Fold = FoldKey
	}
	joined, stats, err := left.InnerJoin(right, []dataset.JoinKey{
		{Left: "artist", Right: "name"},
		{Left: "song", Right: "title"},
	}, opts)
	if err != nil {
		return nil, stats, err
	}
	if stats.AmbiguousKeys > 0 {
		p.log.Warn("song keys match several songs; first match used", zap.Int("keys", stats.AmbiguousKeys))
	}
	if joined.Len() == 0 {
		p.log.Warn("no play event matched a song; songplays will be empty", zap.Int("events", logs.Len()))
	}

	ids := p.opt.IDs
	plays, err := joined.WithColumn("songplay_id", dataset.Long, func(dataset.Row) any { return ids.Next() })
	if err != nil {
		return nil, stats, err
	}
	plays = plays.Rename([2]string{"ts_timestamp", "start_time"}, [2]string{"user_location", "location"})
	plays, err = withCalendar(plays, "start_time", p.opt.Location, "month", "year")
	if err != nil {
		return nil, stats, err
	}
	plays, err = plays.Select(songplaysColumns...)
	if err != nil {
		return nil, stats, err
	}
	return plays.Named(SongplaysTable), stats, nil
}
