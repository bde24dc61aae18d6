package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachmatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coachmatch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	MatchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachmatch_match_requests_total",
			Help: "Match request operations by outcome",
		},
		[]string{"outcome"},
	)

	AppointmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachmatch_appointments_total",
			Help: "Appointment operations by outcome",
		},
		[]string{"outcome"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachmatch_notifications_total",
			Help: "Notification writes by type and status",
		},
		[]string{"type", "status"},
	)

	RepositoryUnavailableTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachmatch_repository_unavailable_total",
			Help: "Repository calls that timed out or failed",
		},
		[]string{"operation"},
	)

	NotificationRetryQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coachmatch_notification_retry_queue_length",
			Help: "Notifications waiting to be written again",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordMatchRequest(outcome string) {
	MatchRequestsTotal.WithLabelValues(outcome).Inc()
}

func RecordAppointment(outcome string) {
	AppointmentsTotal.WithLabelValues(outcome).Inc()
}

func RecordNotification(notificationType, status string) {
	NotificationsTotal.WithLabelValues(notificationType, status).Inc()
}

func RecordRepositoryUnavailable(operation string) {
	RepositoryUnavailableTotal.WithLabelValues(operation).Inc()
}
