package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeInvalid = "invalid"
)

// Metrics is registered on its own registry so tests can build as many
// services as they like.
type Metrics struct {
	Registry *prometheus.Registry

	pipelineRuns     *prometheus.CounterVec
	pipelineDuration prometheus.Histogram
	rowsRemoved      *prometheus.CounterVec
	cacheHits        prometheus.Counter
	datasetReloads   *prometheus.CounterVec
	datasetRows      prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "airquality_pipeline_runs_total",
			Help: "Dashboard pipeline runs by outcome.",
		}, []string{"outcome"}),
		pipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "airquality_pipeline_duration_seconds",
			Help:    "Time spent filtering, cleaning and aggregating.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		rowsRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "airquality_rows_removed_total",
			Help: "Rows dropped per pipeline stage.",
		}, []string{"stage"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "airquality_cache_hits_total",
			Help: "Dashboard requests answered from the result cache.",
		}),
		datasetReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "airquality_dataset_reloads_total",
			Help: "Dataset reloads by outcome.",
		}, []string{"outcome"}),
		datasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "airquality_dataset_rows",
			Help: "Rows in the current dataset snapshot.",
		}),
	}

	m.Registry.MustRegister(
		m.pipelineRuns,
		m.pipelineDuration,
		m.rowsRemoved,
		m.cacheHits,
		m.datasetReloads,
		m.datasetRows,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}
