// Package metrics содержит метрики Prometheus API-шлюза.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketplace"

// Результаты операций с хранилищем изображений.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// Metrics объединяет коллекторы и собственный реестр.
type Metrics struct {
	registry *prometheus.Registry

	Requests       *prometheus.CounterVec
	LatencySeconds *prometheus.HistogramVec
	BlobOperations *prometheus.CounterVec
}

// New создаёт и регистрирует метрики в отдельном реестре.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		LatencySeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		BlobOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_operations_total",
			Help:      "Blob store operations by kind and result. delete/failure counts orphaned blobs.",
		}, []string{"op", "result"}),
	}

	reg.MustRegister(
		m.Requests,
		m.LatencySeconds,
		m.BlobOperations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveRequest учитывает завершённый HTTP-запрос.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.LatencySeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// BlobOperation учитывает операцию с хранилищем изображений.
func (m *Metrics) BlobOperation(op, result string) {
	if m == nil {
		return
	}
	m.BlobOperations.WithLabelValues(op, result).Inc()
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
