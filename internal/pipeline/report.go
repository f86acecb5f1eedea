package pipeline

import "time"

// TableReport describes one published table.
type TableReport struct {
	Table      string        `json:"table"`
	Location   string        `json:"location"`
	Rows       int64         `json:"rows"`
	Partitions int           `json:"partitions"`
	Files      int           `json:"files"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Report summarizes a run.
type Report struct {
	RunID      string    `json:"run_id"`
	Job        string    `json:"job"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	SongRecords int `json:"song_records"`
	LogEvents   int `json:"log_events"`
	// AmbiguousSongKeys counts (title, artist name) pairs that identify more
	// than one song; log events matching them are joined to the first.
	AmbiguousSongKeys int `json:"ambiguous_song_keys"`

	Tables []TableReport `json:"tables"`
	Err    string        `json:"error,omitempty"`
}

// Table returns the report for name.
func (r *Report) Table(name string) (TableReport, bool) {
	for _, t := range r.Tables {
		if t.Table == name {
			return t, true
		}
	}
	return TableReport{}, false
}

// Succeeded reports whether the run completed without error.
func (r *Report) Succeeded() bool { return r.Err == "" }
