package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashnotes_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flashnotes_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	AIQuotaChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashnotes_ai_quota_checks_total",
			Help: "AI usage quota checks by outcome (created, reset, incremented, denied, error).",
		},
		[]string{"outcome"},
	)

	AIQuotaCreateConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flashnotes_ai_quota_create_conflicts_total",
			Help: "Quota record creations that lost a race with a concurrent request.",
		},
	)

	MailsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashnotes_mails_sent_total",
			Help: "Outbound emails by delivery status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AIQuotaChecksTotal,
		AIQuotaCreateConflictsTotal,
		MailsSentTotal,
	)
}
