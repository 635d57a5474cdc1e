package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/yupeng0512/user-management/pkg/errors"
)

// Metrics holds all application metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Password lifecycle metrics
	PasswordChanges     *prometheus.CounterVec
	ResetRequests       *prometheus.CounterVec
	ResetConfirmations  *prometheus.CounterVec
	StrengthScore       prometheus.Histogram
	NotificationsFailed *prometheus.CounterVec
	RecordsPurged       *prometheus.CounterVec

	// HTTP metrics
	RequestDuration *prometheus.HistogramVec
	RequestTotal    *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics on reg
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PasswordChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "password_changes_total",
			Help:      "Authenticated password change attempts by result",
		}, []string{"result"}),
		ResetRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "password_reset_requests_total",
			Help:      "Password reset initiations by result",
		}, []string{"result"}),
		ResetConfirmations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "password_reset_confirms_total",
			Help:      "Password reset confirmations by result",
		}, []string{"result"}),
		StrengthScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "password_strength_score",
			Help:      "Strength scores of passwords submitted for change or reset",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		NotificationsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "password_notifications_failed_total",
			Help:      "Notifications that could not be delivered",
		}, []string{"kind"}),
		RecordsPurged: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "password_records_purged_total",
			Help:      "Reset tokens and history entries removed by cleanup",
		}, []string{"kind"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		RequestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
	}
}

// Result maps an operation error to a low-cardinality label
func Result(err error) string {
	if err == nil {
		return "success"
	}
	if appErr, ok := apperrors.As(err); ok {
		return strings.ToLower(string(appErr.Code))
	}
	return "error"
}

func (m *Metrics) ObservePasswordChange(err error) {
	if m == nil {
		return
	}
	m.PasswordChanges.WithLabelValues(Result(err)).Inc()
}

func (m *Metrics) ObserveResetRequest(result string) {
	if m == nil {
		return
	}
	m.ResetRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveResetConfirm(err error) {
	if m == nil {
		return
	}
	m.ResetConfirmations.WithLabelValues(Result(err)).Inc()
}

func (m *Metrics) ObserveStrength(score int) {
	if m == nil {
		return
	}
	m.StrengthScore.Observe(float64(score))
}

func (m *Metrics) NotificationFailed(kind string) {
	if m == nil {
		return
	}
	m.NotificationsFailed.WithLabelValues(kind).Inc()
}

func (m *Metrics) Purged(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsPurged.WithLabelValues(kind).Add(float64(n))
}
