// Package metrics provides Prometheus instrumentation for refiner runs.
//
// The refiner is a batch job, so metrics live on a per-run registry and are
// flushed to a node-exporter textfile at the end of the run instead of
// being scraped.
//
// Metrics exposed:
//   - silverline_stage_duration_seconds: Histogram of stage durations by dataset and stage
//   - silverline_dataset_rows: Gauge of rows written per dataset
//   - silverline_dataset_columns: Gauge of columns written per dataset
//   - silverline_missing_values: Gauge of missing values per dataset and column
//   - silverline_last_success_timestamp_seconds: Gauge of the last successful write per dataset
//   - silverline_errors_total: Counter of failures by stage and error kind
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of one refiner run.
type Metrics struct {
	Registry *prometheus.Registry

	StageSeconds  *prometheus.HistogramVec
	Rows          *prometheus.GaugeVec
	Columns       *prometheus.GaugeVec
	MissingValues *prometheus.GaugeVec
	LastSuccess   *prometheus.GaugeVec
	ErrorsTotal   *prometheus.CounterVec
}

// New creates the run metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		StageSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "silverline_stage_duration_seconds",
			Help:    "Time spent in each refiner stage",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"dataset", "stage"}),

		Rows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "silverline_dataset_rows",
			Help: "Rows in the last written silver table",
		}, []string{"dataset"}),

		Columns: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "silverline_dataset_columns",
			Help: "Columns in the last written silver table, bin_start included",
		}, []string{"dataset"}),

		MissingValues: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "silverline_missing_values",
			Help: "Missing values per column in the last written silver table",
		}, []string{"dataset", "column"}),

		LastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "silverline_last_success_timestamp_seconds",
			Help: "Unix time of the last successful silver write",
		}, []string{"dataset"}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "silverline_errors_total",
			Help: "Total number of run failures by stage and error kind",
		}, []string{"stage", "kind"}),
	}
}

// RecordStage records the time spent in a stage for a dataset. Stages that
// run before datasets diverge use an empty dataset label.
func (m *Metrics) RecordStage(dataset, stage string, seconds float64) {
	m.StageSeconds.WithLabelValues(dataset, stage).Observe(seconds)
}

// RecordDataset records the shape of a written table.
func (m *Metrics) RecordDataset(dataset string, rows, columns int, missing map[string]int, unixSeconds float64) {
	m.Rows.WithLabelValues(dataset).Set(float64(rows))
	m.Columns.WithLabelValues(dataset).Set(float64(columns))
	for column, n := range missing {
		m.MissingValues.WithLabelValues(dataset, column).Set(float64(n))
	}
	m.LastSuccess.WithLabelValues(dataset).Set(unixSeconds)
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(stage, kind string) {
	m.ErrorsTotal.WithLabelValues(stage, kind).Inc()
}

// WriteTextfile writes the registry in the text exposition format to path,
// atomically, for the node-exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
