package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the process metrics. A nil *Collector is valid and records nothing,
// so components can be built without metrics in tests.
type Collector struct {
	registry *prometheus.Registry

	retrievalStages     *prometheus.CounterVec
	retrievalDuration   *prometheus.HistogramVec
	retrievalResults    prometheus.Histogram
	retrievalDecisions  *prometheus.CounterVec
	generationFailures  prometheus.Counter
	qualityGrade        prometheus.Histogram
	thresholds          *prometheus.GaugeVec
	successRate         prometheus.Gauge
	ingestedDocuments   *prometheus.CounterVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		retrievalStages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retrieval_stage_total",
				Help:      "Retrieval stage executions by outcome",
			},
			[]string{"stage", "status"},
		),
		retrievalDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "retrieval_stage_duration_seconds",
				Help:      "Retrieval stage duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"stage"},
		),
		retrievalResults: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "retrieval_results",
				Help:      "Number of ranked results returned per retrieval",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
			},
		),
		retrievalDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retrieval_decisions_total",
				Help:      "Retrieval decisions by deciding signal",
			},
			[]string{"reason"},
		),
		generationFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_failures_total",
				Help:      "Generation calls that fell back to the apology response",
			},
		),
		qualityGrade: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "quality_grade",
				Help:      "Self-assessed response quality grade",
				Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
			},
		),
		thresholds: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "persona_threshold",
				Help:      "Current persona threshold values",
			},
			[]string{"threshold"},
		),
		successRate: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "persona_success_rate",
				Help:      "Exponential moving average of successful responses",
			},
		),
		ingestedDocuments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingested_documents_total",
				Help:      "Documents processed by the ingestion builder",
			},
			[]string{"status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// Registry exposes the underlying registry for scraping and tests.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the collector in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordStage(stage string, err error, d time.Duration) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.retrievalStages.WithLabelValues(stage, status).Inc()
	c.retrievalDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (c *Collector) RecordSkippedStage(stage string) {
	if c == nil {
		return
	}
	c.retrievalStages.WithLabelValues(stage, "skipped").Inc()
}

func (c *Collector) RecordResults(n int) {
	if c == nil {
		return
	}
	c.retrievalResults.Observe(float64(n))
}

func (c *Collector) RecordDecision(reason string) {
	if c == nil {
		return
	}
	c.retrievalDecisions.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordGenerationFailure() {
	if c == nil {
		return
	}
	c.generationFailures.Inc()
}

func (c *Collector) RecordGrade(grade float64) {
	if c == nil {
		return
	}
	c.qualityGrade.Observe(grade)
}

// SetThresholds publishes the persona state after an update.
func (c *Collector) SetThresholds(values map[string]float64, successRate float64) {
	if c == nil {
		return
	}
	for name, v := range values {
		c.thresholds.WithLabelValues(name).Set(v)
	}
	c.successRate.Set(successRate)
}

func (c *Collector) RecordIngest(err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.ingestedDocuments.WithLabelValues(status).Inc()
}

func (c *Collector) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
