package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starschema/internal/dataset"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func newTestContext(t *testing.T) *Context {
	t.Helper()
	c, err := New(Config{RunID: "run1", Workers: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRead_MergesFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "song_data", "A", "B", "C", "TRB.json"),
		`{"song_id":"S2","title":"Boy","year":0,"duration":100.5}`)
	writeFile(t, filepath.Join(dir, "song_data", "A", "B", "C", "TRA.json"),
		`{"song_id":"S1","title":"Girl","year":2000,"duration":218}`)

	c := newTestContext(t)
	ds, err := c.Read(context.Background(), "song_data", filepath.Join(dir, "song_data", "*", "*", "*", "*.json"))
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())

	assert.Equal(t, "S1", ds.Value(0, "song_id"))
	assert.Equal(t, "S2", ds.Value(1, "song_id"))
	f, _ := ds.Schema().Field("duration")
	assert.Equal(t, dataset.Double, f.Kind)
	f, _ = ds.Schema().Field("year")
	assert.Equal(t, dataset.Long, f.Kind)
}

func TestRead_NDJSONLogs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "log_data", "2018-11-12-events.json"),
		`{"page":"NextSong","ts":1541990258796,"userId":"26"}
{"page":"Home","ts":1541990264796,"userId":""}
`)
	c := newTestContext(t)
	ds, err := c.Read(context.Background(), "log_data", filepath.Join(dir, "log_data", "*.json"))
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, int64(1541990258796), ds.Value(0, "ts"))
}

func TestRead_NoMatch(t *testing.T) {
	c := newTestContext(t)
	_, err := c.Read(context.Background(), "log_data", filepath.Join(t.TempDir(), "*.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoInput))
}

func TestRead_MalformedFileFailsRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.json"), `{"ok":1}`)
	writeFile(t, filepath.Join(dir, "b.json"), `{"broken":`)

	c := newTestContext(t)
	_, err := c.Read(context.Background(), "log_data", filepath.Join(dir, "*.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b.json")
}

func TestWrite_OverwritesPreviousRun(t *testing.T) {
	out := t.TempDir()
	schema := dataset.Schema{{Name: "user_id", Kind: dataset.String}, {Name: "level", Kind: dataset.String}}

	c := newTestContext(t)
	first := dataset.New("users", schema, []dataset.Row{{"1", "free"}, {"2", "paid"}})
	w, err := c.Write(context.Background(), first, out, "users_table")
	require.NoError(t, err)
	assert.Equal(t, int64(2), w.Rows)
	assert.Equal(t, filepath.Join(out, "users_table"), w.Location)

	stale := filepath.Join(out, "users_table", "stale.parquet")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))

	c2, err := New(Config{RunID: "run2"})
	require.NoError(t, err)
	second := dataset.New("users", schema, []dataset.Row{{"3", "free"}})
	w, err = c2.Write(context.Background(), second, out, "users_table")
	require.NoError(t, err)
	require.NoError(t, c2.Close())

	assert.Equal(t, int64(1), w.Rows)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(out, "users_table", "part-00000-run2.snappy.parquet"))
	assert.NoFileExists(t, filepath.Join(out, "users_table", "part-00000-run1.snappy.parquet"))
	assert.NoDirExists(t, filepath.Join(out, "_temporary", "run2"))
}

func TestWrite_BadPartitionColumnKeepsPreviousOutput(t *testing.T) {
	out := t.TempDir()
	schema := dataset.Schema{{Name: "song_id", Kind: dataset.String}}
	c := newTestContext(t)

	_, err := c.Write(context.Background(), dataset.New("songs", schema, []dataset.Row{{"S1"}}), out, "songs_table")
	require.NoError(t, err)

	_, err = c.Write(context.Background(), dataset.New("songs", schema, []dataset.Row{{"S2"}}), out, "songs_table", "year")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWrite))
	assert.True(t, errors.Is(err, dataset.ErrSchemaMismatch))
	assert.FileExists(t, filepath.Join(out, "songs_table", "part-00000-run1.snappy.parquet"))
}

func TestNew_RejectsHalfCredentials(t *testing.T) {
	_, err := New(Config{RunID: "r", Credentials: Credentials{AccessKeyID: "AKIA"}})
	require.Error(t, err)

	_, err = New(Config{})
	require.Error(t, err)
}
