package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tinyprovider"

// Metrics owns its registry so several instances can coexist in tests.
// All methods are safe on a nil receiver, which is how metrics are disabled.
type Metrics struct {
	registry        *prometheus.Registry
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	grants          *prometheus.CounterVec
	tokensIssued    *prometheus.CounterVec
	routerErrors    *prometheus.CounterVec
	tokenChecks     *prometheus.CounterVec
	cleanupsDeleted prometheus.Counter
}

func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of processed HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		grants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grants_total",
			Help:      "Grants issued by resource owners, by result.",
		}, []string{"result"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Access tokens issued, by grant type.",
		}, []string{"grant_type"}),
		routerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "router_errors_total",
			Help:      "Requests rejected while classifying, by error kind.",
		}, []string{"kind"}),
		tokenChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_checks_total",
			Help:      "Access token checks, by result.",
		}, []string{"result"}),
		cleanupsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_authorizations_deleted_total",
			Help:      "Expired authorizations removed by the cleanup routine.",
		}),
	}

	collectorsToRegister := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.grants,
		m.tokensIssued,
		m.routerErrors,
		m.tokenChecks,
		m.cleanupsDeleted,
	}

	for _, collector := range collectorsToRegister {
		if err := register(m.registry, collector); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func register(registry prometheus.Registerer, collector prometheus.Collector) error {
	if err := registry.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return nil
		}
		return err
	}
	return nil
}

// RegisterAuthorizationCount exposes the number of stored grants, count is called on every scrape.
func (m *Metrics) RegisterAuthorizationCount(count func() (int64, error)) error {
	if m == nil {
		return nil
	}
	return register(m.registry, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "authorizations",
		Help:      "Number of stored authorizations.",
	}, func() float64 {
		n, err := count()
		if err != nil {
			return 0
		}
		return float64(n)
	}))
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Metrics) ObserveRequest(method string, path string, status int, latency time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(latency.Seconds())
}

func (m *Metrics) Grant(result string) {
	if m == nil {
		return
	}
	m.grants.WithLabelValues(result).Inc()
}

func (m *Metrics) TokenIssued(grantType string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(grantType).Inc()
}

func (m *Metrics) RouterError(kind string) {
	if m == nil {
		return
	}
	m.routerErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) TokenCheck(result string) {
	if m == nil {
		return
	}
	m.tokenChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) ExpiredDeleted(count int64) {
	if m == nil {
		return
	}
	m.cleanupsDeleted.Add(float64(count))
}
