package metrics

import "github.com/prometheus/client_golang/prometheus"

// Operation results.
const (
	ResultOK        = "ok"
	ResultInvalid   = "invalid"
	ResultConflict  = "conflict"
	ResultNotFound  = "not_found"
	ResultForbidden = "forbidden"
	ResultError     = "error"
)

// Metrics holds the collectors exported by the service.
type Metrics struct {
	// Operations counts lock store operations by operation and result.
	Operations *prometheus.CounterVec
	// HTTPRequests counts served requests by method, route and status code.
	HTTPRequests *prometheus.CounterVec
	// Reclaimed counts expired records removed by the sweeper.
	Reclaimed prometheus.Counter
}

// New creates the collectors. They are not registered.
func New() *Metrics {
	return &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tablelock_operations_total",
			Help: "Total number of lock store operations",
		}, []string{"operation", "result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tablelock_http_requests_total",
			Help: "Total number of HTTP requests served",
		}, []string{"method", "route", "code"}),
		Reclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tablelock_expired_locks_reclaimed_total",
			Help: "Total number of expired locks removed by the sweeper",
		}),
	}
}

// Register registers the collectors on reg.
func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(m.Operations, m.HTTPRequests, m.Reclaimed)
}

// RegisterLockGauge exports the number of records held by a store.
func RegisterLockGauge(reg prometheus.Registerer, count func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tablelock_memory_locks",
		Help: "Current number of lock records held in memory",
	}, func() float64 {
		return float64(count())
	}))
}

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}
