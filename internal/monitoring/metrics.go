package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 账户指标
	AccountsCreated prometheus.Counter
	AccountsDeleted prometheus.Counter
	AccountsExpired prometheus.Counter

	// 邮件指标
	MessagesFetched prometheus.Counter
	MessagesRead    prometheus.Counter
	MessagesDeleted prometheus.Counter

	// 上游指标
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec

	// 限流指标
	RateLimitAllowed *prometheus.CounterVec
	RateLimitBlocked *prometheus.CounterVec

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailproxy_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailproxy_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailproxy_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		AccountsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailproxy_accounts_created_total",
				Help: "Total number of temporary accounts created",
			},
		),

		AccountsDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailproxy_accounts_deleted_total",
				Help: "Total number of temporary accounts deleted",
			},
		),

		AccountsExpired: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailproxy_accounts_expired_total",
				Help: "Total number of temporary accounts expired",
			},
		),

		MessagesFetched: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailproxy_messages_fetched_total",
				Help: "Total number of messages fetched from upstream",
			},
		),

		MessagesRead: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailproxy_messages_read_total",
				Help: "Total number of messages read",
			},
		),

		MessagesDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailproxy_messages_deleted_total",
				Help: "Total number of messages deleted",
			},
		),

		ProviderRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailproxy_provider_requests_total",
				Help: "Total number of upstream provider requests",
			},
			[]string{"operation", "outcome"},
		),

		ProviderRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailproxy_provider_request_duration_seconds",
				Help:    "Upstream provider request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		RateLimitAllowed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailproxy_rate_limit_allowed_total",
				Help: "Total number of requests admitted by the rate limiter",
			},
			[]string{"operation"},
		),

		RateLimitBlocked: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailproxy_rate_limit_blocked_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"operation"},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailproxy_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailproxy_panics_total",
				Help: "Total number of panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordAccountCreated 记录账户创建
func (m *Metrics) RecordAccountCreated() {
	m.AccountsCreated.Inc()
}

// RecordAccountDeleted 记录账户删除
func (m *Metrics) RecordAccountDeleted() {
	m.AccountsDeleted.Inc()
}

// RecordAccountsExpired 记录过期账户数
func (m *Metrics) RecordAccountsExpired(count int) {
	m.AccountsExpired.Add(float64(count))
}

// RecordMessageFetched 记录上游邮件抓取
func (m *Metrics) RecordMessageFetched() {
	m.MessagesFetched.Inc()
}

// RecordMessageRead 记录邮件阅读
func (m *Metrics) RecordMessageRead() {
	m.MessagesRead.Inc()
}

// RecordMessageDeleted 记录邮件删除
func (m *Metrics) RecordMessageDeleted() {
	m.MessagesDeleted.Inc()
}

// RecordProviderRequest 记录上游请求
func (m *Metrics) RecordProviderRequest(operation, outcome string, duration time.Duration) {
	m.ProviderRequestsTotal.WithLabelValues(operation, outcome).Inc()
	m.ProviderRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRateLimitAllowed 记录限流放行
func (m *Metrics) RecordRateLimitAllowed(operation string) {
	m.RateLimitAllowed.WithLabelValues(operation).Inc()
}

// RecordRateLimitBlocked 记录限流拒绝
func (m *Metrics) RecordRateLimitBlocked(operation string) {
	m.RateLimitBlocked.WithLabelValues(operation).Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
