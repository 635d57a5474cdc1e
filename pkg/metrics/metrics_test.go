package metrics

import (
	"errors"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/yupeng0512/user-management/pkg/errors"
)

func TestResult(t *testing.T) {
	assert.Equal(t, "success", Result(nil))
	assert.Equal(t, "weak_password", Result(apperrors.NewWeakPassword(nil)))
	assert.Equal(t, "rate_limited", Result(apperrors.NewRateLimited(http.StatusForbidden, "x", nil)))
	assert.Equal(t, "error", Result(errors.New("boom")))
}

func TestCounters(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.ObservePasswordChange(nil)
	m.ObservePasswordChange(apperrors.NewPasswordMismatch())
	m.ObserveResetRequest("issued")
	m.Purged("reset_tokens", 4)
	m.Purged("reset_tokens", 0)
	m.NotificationFailed("reset_link")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PasswordChanges.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PasswordChanges.WithLabelValues("password_mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResetRequests.WithLabelValues("issued")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.RecordsPurged.WithLabelValues("reset_tokens")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsFailed.WithLabelValues("reset_link")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePasswordChange(nil)
		m.ObserveResetRequest("issued")
		m.ObserveResetConfirm(nil)
		m.ObserveStrength(50)
		m.NotificationFailed("change_notice")
		m.Purged("history", 1)
	})
}
