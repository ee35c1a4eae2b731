// Package observability exposes Prometheus metrics for the chat service.
package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry with HTTP, chat and corpus metrics.
// It implements service.Observer.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	chatTotal     *prometheus.CounterVec
	chatDuration  prometheus.Histogram
	reloadsTotal  prometheus.Counter
	reloadSeconds prometheus.Histogram
	indexedChunks prometheus.Gauge
	loadFailures  prometheus.Gauge
}

// NewMetrics creates and registers all metrics under namespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "ragchat"
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		chatTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_answers_total",
			Help:      "Answers produced, by outcome",
		}, []string{"outcome"}),
		chatDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_answer_duration_seconds",
			Help:      "Time to answer a question, including provider calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45},
		}),
		reloadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corpus_reloads_total",
			Help:      "Number of corpus rebuilds",
		}),
		reloadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "corpus_reload_duration_seconds",
			Help:      "Corpus rebuild duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		indexedChunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "corpus_indexed_chunks",
			Help:      "Chunks in the current corpus generation",
		}),
		loadFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "corpus_load_failures",
			Help:      "Load failures recorded by the current corpus generation",
		}),
	}
	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.chatTotal,
		m.chatDuration,
		m.reloadsTotal,
		m.reloadSeconds,
		m.indexedChunks,
		m.loadFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ChatAnswered records one answered question.
func (m *Metrics) ChatAnswered(outcome string, elapsed time.Duration) {
	m.chatTotal.WithLabelValues(outcome).Inc()
	m.chatDuration.Observe(elapsed.Seconds())
}

// CorpusReloaded records one corpus rebuild.
func (m *Metrics) CorpusReloaded(chunks, failures int, elapsed time.Duration) {
	m.reloadsTotal.Inc()
	m.reloadSeconds.Observe(elapsed.Seconds())
	m.indexedChunks.Set(float64(chunks))
	m.loadFailures.Set(float64(failures))
}

// Middleware records request counts and latency per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
