package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// crawl/analysis engines. It satisfies the observer interfaces the Graph
// client, the crawl engine and the AI pass accept.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	graphDuration   *prometheus.HistogramVec
	graphTotal      *prometheus.CounterVec
	throttleRetries prometheus.Counter

	crawlBatches   prometheus.Counter
	crawlClaimed   prometheus.Counter
	crawlFailed    prometheus.Counter
	queueReclaims  prometheus.Counter
	classifyChunks *prometheus.CounterVec
}

// NewMetricsService registers all collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	graphDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "graph_request_duration_seconds",
		Help:    "Duration of Microsoft Graph requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	graphTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "graph_requests_total",
		Help: "Total Microsoft Graph requests by status",
	}, []string{"status"})

	throttleRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "graph_throttle_retries_total",
		Help: "Total Graph 429 retries honoured",
	})

	crawlBatches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crawl_batches_total",
		Help: "Total crawl batch cycles processed",
	})

	crawlClaimed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crawl_items_claimed_total",
		Help: "Total queue items claimed across batches",
	})

	crawlFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crawl_items_failed_total",
		Help: "Total queue items that failed to expand",
	})

	queueReclaims := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crawl_queue_reclaims_total",
		Help: "Total stale queue items reclaimed",
	})

	classifyChunks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "classifier_chunks_total",
		Help: "Total AI classifier chunks by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, graphDuration, graphTotal,
		throttleRetries, crawlBatches, crawlClaimed, crawlFailed, queueReclaims,
		classifyChunks, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		graphDuration:   graphDuration,
		graphTotal:      graphTotal,
		throttleRetries: throttleRetries,
		crawlBatches:    crawlBatches,
		crawlClaimed:    crawlClaimed,
		crawlFailed:     crawlFailed,
		queueReclaims:   queueReclaims,
		classifyChunks:  classifyChunks,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveGraphRequest records one upstream Graph call.
func (m *MetricsService) ObserveGraphRequest(status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.graphDuration.WithLabelValues(labelStatus).Observe(duration.Seconds())
	m.graphTotal.WithLabelValues(labelStatus).Inc()
}

// ObserveThrottleRetry counts one honoured 429 backoff.
func (m *MetricsService) ObserveThrottleRetry() {
	if m == nil {
		return
	}
	m.throttleRetries.Inc()
}

// ObserveCrawlBatch records one batch cycle's claim and failure counts.
func (m *MetricsService) ObserveCrawlBatch(claimed, failed int) {
	if m == nil {
		return
	}
	m.crawlBatches.Inc()
	m.crawlClaimed.Add(float64(claimed))
	m.crawlFailed.Add(float64(failed))
}

// ObserveQueueReclaim counts stale queue items returned to pending.
func (m *MetricsService) ObserveQueueReclaim(count int64) {
	if m == nil {
		return
	}
	m.queueReclaims.Add(float64(count))
}

// ObserveClassifierChunk counts one AI chunk by outcome.
func (m *MetricsService) ObserveClassifierChunk(success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.classifyChunks.WithLabelValues(outcome).Inc()
}
