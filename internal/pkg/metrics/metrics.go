package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// 应用级 Prometheus 指标，由 InitMetrics 注册后全局可用。
var (
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	SignupTotal          prometheus.Counter
	LoginSuccessTotal    prometheus.Counter
	LoginFailureTotal    prometheus.Counter
	LoginThrottledTotal  prometheus.Counter
	MessagesSentTotal    prometheus.Counter
	ListingsCreatedTotal prometheus.Counter

	initOnce sync.Once
)

// InitMetrics 注册所有指标。重复调用只生效一次，方便测试。
func InitMetrics() {
	initOnce.Do(func() {
		HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusloop_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"})

		HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campusloop_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})

		SignupTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campusloop_signup_total",
			Help: "Successfully created accounts.",
		})
		LoginSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campusloop_login_success_total",
			Help: "Successful logins.",
		})
		LoginFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campusloop_login_failure_total",
			Help: "Rejected logins (bad credentials or account status).",
		})
		LoginThrottledTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campusloop_login_throttled_total",
			Help: "Logins rejected by the rate limiter.",
		})
		MessagesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campusloop_messages_sent_total",
			Help: "Chat messages stored.",
		})
		ListingsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campusloop_listings_created_total",
			Help: "Listings created.",
		})

		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			SignupTotal,
			LoginSuccessTotal,
			LoginFailureTotal,
			LoginThrottledTotal,
			MessagesSentTotal,
			ListingsCreatedTotal,
		)
	})
}
