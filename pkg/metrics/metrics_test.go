package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRegistration(t *testing.T) {
	m := New()

	m.ObserveRegistration(OutcomeSuccess)
	m.ObserveRegistration(OutcomeSuccess)
	m.ObserveRegistration(OutcomeFull)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RegistrationsTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RegistrationsTotal.WithLabelValues(OutcomeFull)))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRegistration(OutcomeSuccess)
	m.ObserveCancellation(OutcomeSuccess)
	m.AddReconcileRepairs("user_side_added", 3)
	m.IncrementUsersCreated()
}

func TestAddReconcileRepairs_IgnoresZero(t *testing.T) {
	m := New()
	m.AddReconcileRepairs("event_side_dropped", 0)
	m.AddReconcileRepairs("user_side_added", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReconcileRepairs.WithLabelValues("user_side_added")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ReconcileRepairs))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.IncrementUsersCreated()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "campus_users_created_total 1"))
}

func TestNewTwiceDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
