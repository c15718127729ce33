package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agri_market"

// Pipeline collects price pipeline measurements on a private registry.
type Pipeline struct {
	registry     *prometheus.Registry
	fetches      *prometheus.CounterVec
	resolutions  *prometheus.CounterVec
	batchLatency *prometheus.HistogramVec
	batchRecords *prometheus.CounterVec
	staleDrops   prometheus.Counter
	storeSize    prometheus.Gauge
}

// NewPipeline registers the pipeline collectors plus the Go runtime collectors.
func NewPipeline() *Pipeline {
	p := &Pipeline{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_fetches_total",
			Help:      "Upstream price fetches by outcome.",
		}, []string{"outcome"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Commodity resolutions by serving tier.",
		}, []string{"tier"}),
		batchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Time to fan out and fan in one loader batch.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"category"}),
		batchRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_records_total",
			Help:      "Records accepted into the store per category.",
		}, []string{"category"}),
		staleDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_records_dropped_total",
			Help:      "Records discarded because their generation was superseded.",
		}),
		storeSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_records",
			Help:      "Records held by the current session generation.",
		}),
	}
	p.registry.MustRegister(
		p.fetches,
		p.resolutions,
		p.batchLatency,
		p.batchRecords,
		p.staleDrops,
		p.storeSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Handler exposes the registry in the Prometheus text format.
func (p *Pipeline) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// ObserveFetch counts an upstream request outcome (ok, error, status, decode).
func (p *Pipeline) ObserveFetch(outcome string) {
	p.fetches.WithLabelValues(outcome).Inc()
}

// ObserveResolution counts which tier served a commodity.
func (p *Pipeline) ObserveResolution(tier string) {
	p.resolutions.WithLabelValues(tier).Inc()
}

// ObserveBatch records a completed loader batch.
func (p *Pipeline) ObserveBatch(category string, elapsed time.Duration, records int) {
	p.batchLatency.WithLabelValues(category).Observe(elapsed.Seconds())
	p.batchRecords.WithLabelValues(category).Add(float64(records))
}

// ObserveStaleDrop counts records dropped by the generation guard.
func (p *Pipeline) ObserveStaleDrop(records int) {
	p.staleDrops.Add(float64(records))
}

// SetStoreSize tracks the store size.
func (p *Pipeline) SetStoreSize(records int) {
	p.storeSize.Set(float64(records))
}
