package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/duels/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/me/level", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	for _, path := range []string{"/duels/abc", "/duels/def", "/me/level"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/duels/{id}", "GET", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/me/level", "GET", "401")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthRejections.WithLabelValues("401_unauthorized")))
}

func TestHandler_ExposesDomainCounters(t *testing.T) {
	m := NewNoop()
	m.WorkoutsLogged.Inc()
	m.CompetitionsFinalized.WithLabelValues(Result(nil)).Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "ironcrew_workouts_logged_total 1"))
	assert.True(t, strings.Contains(body, `ironcrew_competitions_finalized_total{result="tie"} 1`))
}

func TestResult(t *testing.T) {
	winner := "g1"
	assert.Equal(t, "win", Result(&winner))
	assert.Equal(t, "tie", Result(nil))
}
