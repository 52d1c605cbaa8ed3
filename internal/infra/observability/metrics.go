package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

// Login outcomes.
const (
	LoginActive        = "role_active"
	LoginChoicePending = "choice_pending"
	LoginBadCreds      = "invalid_credentials"
	LoginNoRoles       = "no_roles"
	LoginDenied        = "schedule_denied"
	LoginError         = "error"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	logins          *prometheus.CounterVec
	scheduleDenials *prometheus.CounterVec
	roleRequests    *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bfa_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_logins_total",
				Help: "Login attempts by outcome.",
			},
			[]string{"outcome"},
		),
		scheduleDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_schedule_denials_total",
				Help: "Role activations denied outside of schedule windows.",
			},
			[]string{"role"},
		),
		roleRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_role_requests_total",
				Help: "Role request workflow steps.",
			},
			[]string{"step"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrLogin records the outcome of one login attempt.
func (m *Metrics) IncrLogin(outcome string) {
	m.logins.WithLabelValues(outcome).Inc()
}

// IncrScheduleDenial records a schedule denial for role.
func (m *Metrics) IncrScheduleDenial(role domain.Role) {
	m.scheduleDenials.WithLabelValues(string(role)).Inc()
}

// IncrRoleRequest records a role request workflow step
// (submitted, approved, rejected, partial).
func (m *Metrics) IncrRoleRequest(step string) {
	m.roleRequests.WithLabelValues(step).Inc()
}

var loginOutcomes = []string{LoginActive, LoginChoicePending, LoginBadCreds, LoginNoRoles, LoginDenied, LoginError}

// GetAccessSnapshot returns the counters served by GET /v1/metrics/access.
func (m *Metrics) GetAccessSnapshot() *domain.AccessMetrics {
	snap := &domain.AccessMetrics{
		LoginsByOutcome:    map[string]int64{},
		ScheduleDenials:    map[string]int64{},
		RoleRequestsByStep: map[string]int64{},
		Period:             "all_time",
	}

	var total float64
	for _, outcome := range loginOutcomes {
		v := getCounterValue(m.logins, outcome)
		total += v
		if v > 0 {
			snap.LoginsByOutcome[outcome] = int64(v)
		}
	}
	snap.LoginsTotal = int64(total)

	for _, r := range domain.AllRoles {
		if !r.Schedulable() {
			continue
		}
		if v := getCounterValue(m.scheduleDenials, string(r)); v > 0 {
			snap.ScheduleDenials[string(r)] = int64(v)
		}
	}
	for _, step := range []string{"submitted", "approved", "rejected", "partial"} {
		if v := getCounterValue(m.roleRequests, step); v > 0 {
			snap.RoleRequestsByStep[step] = int64(v)
		}
	}
	snap.ExternalErrors = int64(sumCounterVec(m.externalErrors))

	if total > 0 {
		snap.DenialRate = getCounterValue(m.logins, LoginDenied) / total
	}
	return snap
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// sumCounterVec adds every child of cv regardless of labels.
func sumCounterVec(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	var total float64
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil {
			continue
		}
		if m.Counter != nil && m.Counter.Value != nil {
			total += *m.Counter.Value
		}
	}
	return total
}
