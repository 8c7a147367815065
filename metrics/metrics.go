package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Image outcomes recorded by ObserveImage.
const (
	ImageKept     = "kept"
	ImageRejected = "rejected"
	ImageFailed   = "failed"
)

// Metrics holds the service's Prometheus collectors. All methods are safe
// to call on a nil *Metrics, which records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	PipelineRunsTotal   *prometheus.CounterVec
	PipelineDuration    *prometheus.HistogramVec
	ImagesTotal         *prometheus.CounterVec
	PDFPages            prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		PipelineRunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slidepdf_pipeline_runs_total",
				Help: "Pipeline runs by presentation mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),
		PipelineDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "slidepdf_pipeline_duration_seconds",
				Help:    "End-to-end pipeline duration.",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"mode"},
		),
		ImagesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slidepdf_images_total",
				Help: "Candidate images by outcome: kept, rejected by filters, or failed to download.",
			},
			[]string{"result"},
		),
		PDFPages: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "slidepdf_pdf_pages",
				Help:    "Pages per generated PDF.",
				Buckets: []float64{1, 5, 10, 20, 40, 80},
			},
		),
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// ObserveRun records a finished pipeline run. outcome is "completed" or an
// error kind.
func (m *Metrics) ObserveRun(mode, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.PipelineRunsTotal.WithLabelValues(mode, outcome).Inc()
	m.PipelineDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// ObserveImage records the outcome of one candidate image.
func (m *Metrics) ObserveImage(result string) {
	if m == nil {
		return
	}
	m.ImagesTotal.WithLabelValues(result).Inc()
}

// ObservePages records the page count of a generated PDF.
func (m *Metrics) ObservePages(n int) {
	if m == nil {
		return
	}
	m.PDFPages.Observe(float64(n))
}
