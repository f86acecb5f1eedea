package sqlite

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:catalog.db?cache=shared"
	//   "catalog.db"
	DSN string

	// Table is the target table for CopyFrom. "main.etl_runs" style names are
	// accepted; each segment is quoted.
	Table string
}
