package pipeline

import "starschema/internal/dataset"

// Output table names, relative to the output root.
const (
	SongsTable     = "songs_table"
	ArtistsTable   = "artists_table"
	UsersTable     = "users_table"
	TimeTable      = "time_table"
	SongplaysTable = "songplays_table"
)

// Input dataset names, as passed to Engine.Read.
const (
	SongData = "song_data"
	LogData  = "log_data"
)

// InputColumns returns the raw columns the stages require from the named input, or
// nil for an unknown dataset.
func InputColumns(name string) []string {
	switch name {
	case SongData:
		return append([]string(nil), songInputColumns...)
	case LogData:
		return append([]string(nil), logInputColumns...)
	}
	return nil
}

// Raw input columns the stages depend on.
var (
	songInputColumns = []string{
		"song_id", "title", "artist_id", "year", "duration",
		"artist_name", "artist_location", "artist_latitude", "artist_longitude",
	}
	logInputColumns = []string{
		"artist", "firstName", "gender", "lastName", "level", "location",
		"page", "sessionId", "song", "ts", "userAgent", "userId",
	}
)

var songRenames = [][2]string{
	{"artist_name", "name"},
	{"artist_location", "location"},
	{"artist_latitude", "latitude"},
	{"artist_longitude", "longitude"},
}

var logRenames = [][2]string{
	{"userId", "user_id"},
	{"firstName", "first_name"},
	{"lastName", "last_name"},
	{"sessionId", "session_id"},
	{"userAgent", "user_agent"},
	{"location", "user_location"},
}

// Canonical kinds applied after renaming so that output schemas do not depend
// on what a particular input batch happened to contain (an all-null latitude
// column would otherwise be inferred as string).
var (
	songKinds = []dataset.Field{
		{Name: "song_id", Kind: dataset.String},
		{Name: "title", Kind: dataset.String},
		{Name: "artist_id", Kind: dataset.String},
		{Name: "year", Kind: dataset.Long},
		{Name: "duration", Kind: dataset.Double},
		{Name: "name", Kind: dataset.String},
		{Name: "location", Kind: dataset.String},
		{Name: "latitude", Kind: dataset.Double},
		{Name: "longitude", Kind: dataset.Double},
	}
	logKinds = []dataset.Field{
		{Name: "artist", Kind: dataset.String},
		{Name: "song", Kind: dataset.String},
		{Name: "page", Kind: dataset.String},
		{Name: "user_id", Kind: dataset.String},
		{Name: "first_name", Kind: dataset.String},
		{Name: "last_name", Kind: dataset.String},
		{Name: "gender", Kind: dataset.String},
		{Name: "level", Kind: dataset.String},
		{Name: "session_id", Kind: dataset.Long},
		{Name: "user_agent", Kind: dataset.String},
		{Name: "user_location", Kind: dataset.String},
		{Name: "ts", Kind: dataset.Long},
	}
)

var (
	songsColumns     = []string{"song_id", "title", "artist_id", "year", "duration"}
	artistsColumns   = []string{"artist_id", "name", "location", "latitude", "longitude"}
	usersColumns     = []string{"user_id", "first_name", "last_name", "gender", "level"}
	songplaysColumns = []string{
		"songplay_id", "start_time", "user_id", "level", "song_id",
		"artist_id", "session_id", "location", "user_agent", "year", "month",
	}
)

func castAll(d *dataset.Dataset, fields []dataset.Field) (*dataset.Dataset, error) {
	var err error
	for _, f := range fields {
		if d, err = d.Cast(f.Name, f.Kind); err != nil {
			return nil, err
		}
	}
	return d, nil
}
