package dataset

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func songs() *Dataset {
	return New("song_data", Schema{
		{Name: "artist_name", Kind: String},
		{Name: "song_id", Kind: String},
		{Name: "title", Kind: String},
		{Name: "year", Kind: Long},
	}, []Row{
		{"X", "S1", "Girl", int64(2000)},
		{"X", "S1", "Girl", int64(2000)},
		{"Y", "S2", "Boy", int64(0)},
		{nil, "S3", "Nobody", nil},
	})
}

func TestRename_IgnoresMissingColumns(t *testing.T) {
	d := songs().Rename([2]string{"artist_name", "name"}, [2]string{"nope", "still_nope"})

	assert.Equal(t, []string{"name", "song_id", "title", "year"}, d.Schema().Names())
	// Receiver is untouched.
	assert.Equal(t, "artist_name", songs().Schema()[0].Name)
}

func TestDistinct_WholeRow(t *testing.T) {
	d := songs().Distinct()
	require.Equal(t, 3, d.Len())
	assert.Equal(t, "S1", d.Value(0, "song_id"))
	assert.Equal(t, "S2", d.Value(1, "song_id"))
	assert.Equal(t, "S3", d.Value(2, "song_id"))
}

func TestDistinct_Idempotent(t *testing.T) {
	once := songs().Distinct()
	twice := once.Distinct()
	assert.Equal(t, once.Len(), twice.Len())
}

func TestDistinct_SameKeyDifferentAttributesKept(t *testing.T) {
	d := New("artists", Schema{{Name: "artist_id", Kind: String}, {Name: "location", Kind: String}}, []Row{
		{"AR1", "NY"},
		{"AR1", "LA"},
		{"AR1", nil},
		{"AR1", nil},
	})
	assert.Equal(t, 3, d.Distinct().Len())
}

func TestDistinct_NoConcatenationAliasing(t *testing.T) {
	d := New("t", Schema{{Name: "a", Kind: String}, {Name: "b", Kind: String}}, []Row{
		{"ab", "c"},
		{"a", "bc"},
	})
	assert.Equal(t, 2, d.Distinct().Len())
}

func TestDistinct_TimestampsCompareByInstant(t *testing.T) {
	ts := time.UnixMilli(1541990258796)
	d := New("t", Schema{{Name: "start_time", Kind: Timestamp}}, []Row{
		{ts.UTC()},
		{ts.In(time.FixedZone("X", 3600))},
	})
	assert.Equal(t, 1, d.Distinct().Len())
}

func TestWhere(t *testing.T) {
	d, err := songs().Where("artist_name", "X")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())

	_, err = songs().Where("page", "NextSong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}

func TestSelect_MissingColumnReportsSchema(t *testing.T) {
	_, err := songs().Select("song_id", "duration")
	require.Error(t, err)

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{"duration"}, se.Missing)
	assert.Contains(t, err.Error(), " |-- song_id: string (nullable = true)")
}

func TestSelect_ProjectsInOrder(t *testing.T) {
	d, err := songs().Select("year", "song_id")
	require.NoError(t, err)
	assert.Equal(t, []string{"year", "song_id"}, d.Schema().Names())
	assert.Equal(t, Row{int64(2000), "S1"}, d.Rows()[0])
}

func TestWithColumn_AppendsAndReplaces(t *testing.T) {
	get, err := songs().Getter("year")
	require.NoError(t, err)

	d, err := songs().WithColumn("decade", Long, func(r Row) any {
		if y, ok := get(r).(int64); ok {
			return y / 10 * 10
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "decade", d.Schema()[4].Name)
	assert.Equal(t, int64(2000), d.Value(0, "decade"))
	assert.Nil(t, d.Value(3, "decade"))

	d, err = d.WithColumn("year", String, func(Row) any { return "x" })
	require.NoError(t, err)
	f, _ := d.Schema().Field("year")
	assert.Equal(t, String, f.Kind)
	assert.Len(t, d.Schema(), 5)
}

func TestWithColumn_KindMismatch(t *testing.T) {
	_, err := songs().WithColumn("bad", Long, func(Row) any { return "nope" })
	require.Error(t, err)
}

func TestTreeString(t *testing.T) {
	got := Schema{{Name: "ts", Kind: Long}, {Name: "start_time", Kind: Timestamp}}.TreeString()
	want := "root\n |-- ts: long (nullable = true)\n |-- start_time: timestamp (nullable = true)\n"
	if got != want {
		t.Fatalf("TreeString() = %q, want %q", got, want)
	}
}

func TestSchemaError_Message(t *testing.T) {
	err := (&Dataset{name: "log_data", schema: Schema{{Name: "ts", Kind: Long}}}).Require("page", "song")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), `dataset "log_data": schema mismatch: missing columns page, song`))
}
