// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A batch run has nothing to scrape, so collected values are pushed to a
// Pushgateway on Flush, grouped under the job name.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"starschema/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // etl_step_total{step,status}
	stepDuration *prometheus.SummaryVec // etl_step_duration_seconds{step,status}
	inputCounter *prometheus.CounterVec // etl_input_records_total{dataset}
	rowsCounter  *prometheus.CounterVec // etl_rows_written_total{table}
	tableCounter *prometheus.CounterVec // etl_tables_published_total{table}
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (usually the pipeline job).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "starschema"
	}

	reg := prometheus.NewRegistry()

	// job is the Pushgateway grouping key, so it is not a metric label.
	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline stage executions, partitioned by stage and status.",
		},
		[]string{"step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Duration of pipeline stages in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step", "status"},
	)
	inputCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.InputRecords,
			Help: "Raw JSON records loaded, per input dataset.",
		},
		[]string{"dataset"},
	)
	rowsCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RowsWritten,
			Help: "Rows written, per output table.",
		},
		[]string{"table"},
	)
	tableCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.TablesPublished,
			Help: "Output tables replaced, per table.",
		},
		[]string{"table"},
	)

	for name, c := range map[string]prometheus.Collector{
		"step counter":  stepCounter,
		"step summary":  stepDuration,
		"input counter": inputCounter,
		"rows counter":  rowsCounter,
		"table counter": tableCounter,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}

	return &Backend{
		gatewayURL:   gatewayURL,
		jobName:      jobName,
		reg:          reg,
		stepCounter:  stepCounter,
		stepDuration: stepDuration,
		inputCounter: inputCounter,
		rowsCounter:  rowsCounter,
		tableCounter: tableCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter != nil {
			b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
		}
	case metrics.InputRecords:
		if b.inputCounter != nil {
			b.inputCounter.WithLabelValues(labels["dataset"]).Add(delta)
		}
	case metrics.RowsWritten:
		if b.rowsCounter != nil {
			b.rowsCounter.WithLabelValues(labels["table"]).Add(delta)
		}
	case metrics.TablesPublished:
		if b.tableCounter != nil {
			b.tableCounter.WithLabelValues(labels["table"]).Add(delta)
		}
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway, replacing the
// previous push for this job.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
