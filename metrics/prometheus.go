package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector Prometheus 指标收集器.
//
// 内置 HTTP 请求指标，其余业务指标通过 Counter/Histogram/Gauge 按名称懒注册.
// 每个收集器持有独立的 Registry，测试之间互不干扰.
type PrometheusCollector struct {
	config *Config

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
	mu         sync.Mutex

	registry *prometheus.Registry
}

// NewPrometheus 创建 Prometheus 收集器.
func NewPrometheus(cfg *Config) (*PrometheusCollector, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	cfg.ApplyDefaults()

	c := &PrometheusCollector{
		config:     cfg,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		registry:   prometheus.NewRegistry(),
	}

	c.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)
	c.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	for _, collector := range []prometheus.Collector{c.httpRequestsTotal, c.httpRequestDuration} {
		if err := c.registry.Register(collector); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRegisterMetric, err)
		}
	}
	return c, nil
}

// RecordHTTPRequest 记录一次 HTTP 请求.
func (c *PrometheusCollector) RecordHTTPRequest(method, path, statusCode string, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Counter 计数器加一，首次使用时注册.
func (c *PrometheusCollector) Counter(name string, labels map[string]string) {
	names, values := extractLabels(labels)

	c.mu.Lock()
	counter, ok := c.counters[name]
	if !ok {
		counter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Name:      name,
			Help:      "Counter " + name,
		}, names)
		if err := c.registry.Register(counter); err != nil {
			c.mu.Unlock()
			return
		}
		c.counters[name] = counter
	}
	c.mu.Unlock()

	counter.WithLabelValues(values...).Inc()
}

// Histogram 记录观测值，首次使用时注册.
func (c *PrometheusCollector) Histogram(name string, value float64, labels map[string]string) {
	names, values := extractLabels(labels)

	c.mu.Lock()
	histogram, ok := c.histograms[name]
	if !ok {
		histogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: c.config.Namespace,
			Name:      name,
			Help:      "Histogram " + name,
			Buckets:   prometheus.DefBuckets,
		}, names)
		if err := c.registry.Register(histogram); err != nil {
			c.mu.Unlock()
			return
		}
		c.histograms[name] = histogram
	}
	c.mu.Unlock()

	histogram.WithLabelValues(values...).Observe(value)
}

// Gauge 设置仪表值，首次使用时注册.
func (c *PrometheusCollector) Gauge(name string, value float64, labels map[string]string) {
	names, values := extractLabels(labels)

	c.mu.Lock()
	gauge, ok := c.gauges[name]
	if !ok {
		gauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Name:      name,
			Help:      "Gauge " + name,
		}, names)
		if err := c.registry.Register(gauge); err != nil {
			c.mu.Unlock()
			return
		}
		c.gauges[name] = gauge
	}
	c.mu.Unlock()

	gauge.WithLabelValues(values...).Set(value)
}

// extractLabels 按标签名排序，保证同名指标的标签顺序稳定.
func extractLabels(labels map[string]string) ([]string, []string) {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)

	values := make([]string, 0, len(names))
	for _, k := range names {
		values = append(values, labels[k])
	}
	return names, values
}

// Registry 返回底层 Registry.
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}

// GetHandler 返回指标暴露的 HTTP 处理器.
func (c *PrometheusCollector) GetHandler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// GetPath 返回指标暴露路径.
func (c *PrometheusCollector) GetPath() string {
	if c.config.Path == "" {
		return "/metrics"
	}
	return c.config.Path
}
