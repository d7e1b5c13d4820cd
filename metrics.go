package mtlsmiddleware

import (
	"errors"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/certbind/go-mtls-middleware/core"
	"github.com/certbind/go-mtls-middleware/token"
)

// Metric names emitted by the Middleware.
const (
	// MetricRequests counts requests by outcome (valid, anonymous, missing,
	// invalid, error, skipped) and error code.
	MetricRequests = "mtls_token_requests_total"

	// MetricBindings counts accepted tokens by the binding tier that
	// confirmed them, or "bearer".
	MetricBindings = "mtls_token_bindings_total"

	// MetricValidationDuration observes validation latency in seconds.
	MetricValidationDuration = "mtls_token_validation_duration_seconds"
)

// Metrics is a generic metrics interface for the middleware.
type Metrics interface {
	IncCounter(name string, tags map[string]string)
	ObserveHistogram(name string, value float64, tags map[string]string)
}

// NoopMetrics is a default metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) IncCounter(string, map[string]string)                {}
func (NoopMetrics) ObserveHistogram(string, float64, map[string]string) {}

// PrometheusMetrics implements Metrics with Prometheus vectors created on
// first use. The label names of a metric are fixed by its first observation.
type PrometheusMetrics struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusMetrics returns a Metrics implementation registering its
// collectors with reg. A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusMetrics{
		registerer: reg,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func (m *PrometheusMetrics) IncCounter(name string, tags map[string]string) {
	m.mu.Lock()
	vec, ok := m.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name + " counter"}, keys(tags))
		vec = register(m.registerer, vec)
		m.counters[name] = vec
	}
	m.mu.Unlock()

	vec.With(tags).Inc()
}

func (m *PrometheusMetrics) ObserveHistogram(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	vec, ok := m.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    name + " histogram",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, keys(tags))
		vec = register(m.registerer, vec)
		m.histograms[name] = vec
	}
	m.mu.Unlock()

	vec.With(tags).Observe(value)
}

// register returns the collector already registered under the same
// descriptor, so two middlewares can share a registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func keys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func classifyOutcome(tok *token.AccessToken, err error) (outcome, code string) {
	if err == nil {
		if tok == nil {
			return "anonymous", ""
		}
		return "valid", ""
	}

	if errors.Is(err, core.ErrJWTMissing) {
		return "missing", core.ErrorCodeTokenMissing
	}

	var validationErr *core.ValidationError
	if errors.As(err, &validationErr) {
		return "invalid", validationErr.Code
	}
	return "error", ""
}
