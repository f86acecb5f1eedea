// Package metrics records operational metrics for a pipeline run behind a
// pluggable Backend.
//
// The default backend is a no-op, so instrumentation is always safe to call.
// Concrete systems live in subpackages (prompush, datadog) and are installed
// once at startup with SetBackend.
package metrics

import "time"

// Metric names emitted by this package.
const (
	StepTotal       = "etl_step_total"
	StepDuration    = "etl_step_duration_seconds"
	InputRecords    = "etl_input_records_total"
	RowsWritten     = "etl_rows_written_total"
	TablesPublished = "etl_tables_published_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep counts one pipeline stage execution and observes its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordInput counts raw records loaded for a dataset (song_data, log_data).
func RecordInput(job, dataset string, n int) {
	if n <= 0 {
		return
	}
	backend.IncCounter(InputRecords, float64(n), Labels{
		"job":     job,
		"dataset": dataset,
	})
}

// RecordRows counts the rows published for one output table. Empty tables
// still count as published.
func RecordRows(job, table string, n int64) {
	lbls := Labels{
		"job":   job,
		"table": table,
	}
	backend.IncCounter(TablesPublished, 1, lbls)
	if n > 0 {
		backend.IncCounter(RowsWritten, float64(n), lbls)
	}
}
