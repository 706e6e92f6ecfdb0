// Package metrics provides Prometheus metrics for the HTTP server and the pipelines.
// HTTP request performance:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//
// Pipeline results:
//   - hospitals_classified: Gauge with region label
//   - hospitals_unclassified: Gauge
//   - release_files_total: Counter with result label (downloaded, skipped, failed)
//   - pipeline_last_success_timestamp_seconds: Gauge with pipeline label
//
// All metrics are automatically registered with the Prometheus default registry
// during package initialization.
package metrics

import (
	"time"

	"github.com/giygas/nhi-hospitals/classifier"
	"github.com/giygas/nhi-hospitals/entities"
	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline label values
const (
	PipelineClassify = "classify"
	PipelineFetch    = "fetch"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~5 minutes)",
		},
	)

	HospitalsClassified = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hospitals_classified",
			Help: "Hospitals placed in a city by the latest classification, per region",
		},
		[]string{"region"},
	)

	HospitalsUnclassified = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hospitals_unclassified",
			Help: "Hospitals no rule could place in the latest classification",
		},
	)

	ReleaseFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "release_files_total",
			Help: "Release files seen by the fetcher, by result",
		},
		[]string{"result"},
	)

	PipelineLastSuccess = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_last_success_timestamp_seconds",
			Help: "Unix time of the last successful pipeline run",
		},
		[]string{"pipeline"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(HospitalsClassified)
	prometheus.MustRegister(HospitalsUnclassified)
	prometheus.MustRegister(ReleaseFilesTotal)
	prometheus.MustRegister(PipelineLastSuccess)
}

// RecordClassification publishes the per region counts of a result
func RecordClassification(result *classifier.Result) {
	for _, region := range classifier.Regions {
		HospitalsClassified.WithLabelValues(string(region)).Set(float64(result.RegionCount(region)))
	}
	HospitalsUnclassified.Set(float64(len(result.Unclassified)))
	PipelineLastSuccess.WithLabelValues(PipelineClassify).SetToCurrentTime()
}

// RecordOutcome counts the files of a fetch run
func RecordOutcome(outcome *entities.DownloadOutcome) {
	ReleaseFilesTotal.WithLabelValues("downloaded").Add(float64(len(outcome.Downloaded)))
	ReleaseFilesTotal.WithLabelValues("skipped").Add(float64(len(outcome.Skipped)))
	ReleaseFilesTotal.WithLabelValues("failed").Add(float64(len(outcome.Failed)))

	checked := outcome.CheckedAt
	if checked.IsZero() {
		checked = time.Now()
	}
	PipelineLastSuccess.WithLabelValues(PipelineFetch).Set(float64(checked.Unix()))
}
