package metricsvc

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/reminder"
)

func TestMetrics(t *testing.T) {
	m := New()
	m.ObserveDispatch(reminder.StatusSent)
	m.ObserveDispatch(reminder.StatusSent)
	m.ObserveDispatch(reminder.StatusFailed)
	m.ObserveDispatch(reminder.StatusSkipped)
	m.ObserveRun(reminder.OutcomePartial)
	m.TimeFallback(errors.New("timeout"))
	m.GuardRedirect("wrong_role")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.remindersSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remindersFailed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reminderRuns.WithLabelValues(reminder.OutcomePartial)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.timeFallbacks))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "portal_reminders_sent_total 2")
	assert.Contains(t, rec.Body.String(), `portal_guard_redirects_total{reason="wrong_role"} 1`)
}
