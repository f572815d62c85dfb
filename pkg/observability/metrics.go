package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsClient records metrics into a prometheus registry.
// Collectors are created lazily on first use, keyed by metric name.
type PrometheusMetricsClient struct {
	registry  *prometheus.Registry
	namespace string

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]prometheus.Histogram
}

// NewPrometheusMetricsClient creates a metrics client backed by its own
// prometheus registry.
func NewPrometheusMetricsClient(namespace string) *PrometheusMetricsClient {
	return &PrometheusMetricsClient{
		registry:   prometheus.NewRegistry(),
		namespace:  namespace,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *PrometheusMetricsClient) Registry() *prometheus.Registry {
	return m.registry
}

// IncrementCounter increments a counter metric without labels.
func (m *PrometheusMetricsClient) IncrementCounter(name string, value float64) {
	m.IncrementCounterWithLabels(name, value, nil)
}

// IncrementCounterWithLabels increments a counter metric with labels.
func (m *PrometheusMetricsClient) IncrementCounterWithLabels(name string, value float64, labels map[string]string) {
	m.counter(name, labelKeys(labels)).With(prometheus.Labels(labels)).Add(value)
}

// RecordGauge sets a gauge metric.
func (m *PrometheusMetricsClient) RecordGauge(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	g, ok := m.gauges[name]
	if !ok {
		g = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: m.namespace,
			Name:      sanitize(name),
		}, labelKeys(labels))
		m.registry.MustRegister(g)
		m.gauges[name] = g
	}
	m.mu.Unlock()
	g.With(prometheus.Labels(labels)).Set(value)
}

// RecordLatency records an operation duration.
func (m *PrometheusMetricsClient) RecordLatency(operation string, duration time.Duration) {
	m.mu.Lock()
	h, ok := m.histograms[operation]
	if !ok {
		h = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace,
			Name:      sanitize(operation) + "_seconds",
			Buckets:   prometheus.DefBuckets,
		})
		m.registry.MustRegister(h)
		m.histograms[operation] = h
	}
	m.mu.Unlock()
	h.Observe(duration.Seconds())
}

// Close releases any resources held by the client.
func (m *PrometheusMetricsClient) Close() error { return nil }

func (m *PrometheusMetricsClient) counter(name string, keys []string) *prometheus.CounterVec {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counters[name]
	if !ok {
		c = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      sanitize(name),
		}, keys)
		m.registry.MustRegister(c)
		m.counters[name] = c
	}
	return c
}

func labelKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	return keys
}

func sanitize(name string) string {
	return strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(name)
}

// NoopMetricsClient discards all metrics, for tests.
type NoopMetricsClient struct{}

// NewNoopMetricsClient creates a metrics client that does nothing.
func NewNoopMetricsClient() MetricsClient { return &NoopMetricsClient{} }

func (m *NoopMetricsClient) IncrementCounter(name string, value float64) {}
func (m *NoopMetricsClient) IncrementCounterWithLabels(name string, value float64, labels map[string]string) {
}
func (m *NoopMetricsClient) RecordGauge(name string, value float64, labels map[string]string) {}
func (m *NoopMetricsClient) RecordLatency(operation string, duration time.Duration)           {}
func (m *NoopMetricsClient) Close() error                                                     { return nil }
