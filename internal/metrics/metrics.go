package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shortlink"

// Metrics счётчики реестра ссылок. Методы безопасны для nil-получателя.
type Metrics struct {
	created  prometheus.Counter
	rejected prometheus.Counter
	clicks   *prometheus.CounterVec
	pruned   prometheus.Counter
	records  prometheus.Gauge
	registry *prometheus.Registry
}

// New регистрирует метрики в отдельном реестре
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "created_total",
			Help:      "Number of short links created.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_total",
			Help:      "Number of submissions rejected by validation.",
		}),
		clicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_total",
			Help:      "Click attempts by outcome.",
		}, []string{"outcome"}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_total",
			Help:      "Number of expired links removed.",
		}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Number of tracked links.",
		}),
		registry: reg,
	}

	reg.MustRegister(m.created, m.rejected, m.clicks, m.pruned, m.records)
	return m
}

// Handler отдаёт метрики в формате Prometheus
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Created(n int) {
	if m == nil {
		return
	}
	m.created.Add(float64(n))
}

func (m *Metrics) Rejected(n int) {
	if m == nil {
		return
	}
	m.rejected.Add(float64(n))
}

// Click учитывает попытку перехода: recorded, not_found, expired
func (m *Metrics) Click(outcome string) {
	if m == nil {
		return
	}
	m.clicks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Pruned(n int) {
	if m == nil {
		return
	}
	m.pruned.Add(float64(n))
}

func (m *Metrics) Records(n int) {
	if m == nil {
		return
	}
	m.records.Set(float64(n))
}
