package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 报名结果标签
const (
	OutcomeSuccess           = "success"
	OutcomeFull              = "full"
	OutcomeAlreadyRegistered = "already_registered"
	OutcomeNotRegistered     = "not_registered"
	OutcomeNotFound          = "not_found"
	OutcomeError             = "error"
)

// Metrics 应用 Prometheus 指标
// 每个实例持有独立的 Registry，便于测试中重复创建
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	RegistrationsTotal *prometheus.CounterVec
	CancellationsTotal *prometheus.CounterVec
	ReconcileRepairs   *prometheus.CounterVec
	UsersCreated       prometheus.Counter
}

// New 创建并注册全部指标
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campus_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		RegistrationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_registrations_total",
			Help: "Event registration attempts by outcome",
		}, []string{"outcome"}),
		CancellationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_registration_cancellations_total",
			Help: "Event registration cancellations by outcome",
		}, []string{"outcome"}),
		ReconcileRepairs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_reconcile_repairs_total",
			Help: "References repaired by the reconcile pass, by kind",
		}, []string{"kind"}),
		UsersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "campus_users_created_total",
			Help: "Total number of user accounts created",
		}),
	}
}

// Handler /metrics 暴露端点
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 底层 Registry（测试中用于读取指标）
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRegistration 记录一次报名结果
func (m *Metrics) ObserveRegistration(outcome string) {
	if m == nil {
		return
	}
	m.RegistrationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCancellation 记录一次取消报名结果
func (m *Metrics) ObserveCancellation(outcome string) {
	if m == nil {
		return
	}
	m.CancellationsTotal.WithLabelValues(outcome).Inc()
}

// AddReconcileRepairs 累加对账修复数量
func (m *Metrics) AddReconcileRepairs(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ReconcileRepairs.WithLabelValues(kind).Add(float64(n))
}

// IncrementUsersCreated 新用户计数 +1
func (m *Metrics) IncrementUsersCreated() {
	if m == nil {
		return
	}
	m.UsersCreated.Inc()
}
