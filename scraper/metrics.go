package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request phases, used as the "phase" label on request counts.
const (
	PhasePage  = "page"
	PhaseImage = "image"
)

// Image outcomes, used as the "outcome" label on image counts.
const (
	ImageSaved   = "saved"
	ImageSkipped = "skipped"
)

// Listing pages are usually slow to render server-side, so the buckets
// reach further than prometheus.DefBuckets.
var pageFetchBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32}

// Metrics exposes crawl progress on its own registry so tests and the
// CLI never share state through the global one. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	requests  *prometheus.CounterVec
	pageFetch prometheus.Histogram
	records   prometheus.Counter
	images    *prometheus.CounterVec
	errors    *prometheus.CounterVec
}

// NewMetrics registers the crawl collectors under the "scraper" namespace.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scraper",
			Name:      "requests_total",
			Help:      "Listing page and product image requests sent.",
		}, []string{"phase"}),
		pageFetch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scraper",
			Name:      "page_fetch_seconds",
			Help:      "Time from request to response for listing pages.",
			Buckets:   pageFetchBuckets,
		}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scraper",
			Name:      "records_total",
			Help:      "Product records appended to the crawl state.",
		}),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scraper",
			Name:      "images_total",
			Help:      "Product images by outcome.",
		}, []string{"outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scraper",
			Name:      "errors_total",
			Help:      "Failed page and image requests by error type.",
		}, []string{"error_type"}),
	}
	m.Registry.MustRegister(m.requests, m.pageFetch, m.records, m.images, m.errors)
	return m
}

func (m *Metrics) IncRequest(phase string) {
	if m != nil {
		m.requests.WithLabelValues(phase).Inc()
	}
}

func (m *Metrics) ObservePageFetch(d time.Duration) {
	if m != nil {
		m.pageFetch.Observe(d.Seconds())
	}
}

func (m *Metrics) IncRecords() {
	if m != nil {
		m.records.Inc()
	}
}

// IncImage counts one image under ImageSaved or ImageSkipped.
func (m *Metrics) IncImage(outcome string) {
	if m != nil {
		m.images.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncError(errorType string) {
	if m != nil {
		m.errors.WithLabelValues(errorType).Inc()
	}
}
