// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the server records to.
type Metrics struct {
	gatherer prometheus.Gatherer

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	AuthRejections      *prometheus.CounterVec

	WorkoutsLogged        prometheus.Counter
	AchievementsUnlocked  *prometheus.CounterVec
	CompetitionsFinalized *prometheus.CounterVec
	DuelsFinalized        *prometheus.CounterVec
	MatchmakingPairs      prometheus.Counter
	LeaderboardCache      *prometheus.CounterVec
	JobRuns               *prometheus.CounterVec
	JobDuration           *prometheus.HistogramVec

	SSEClients       prometheus.Gauge
	SSEEventsDropped *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
		AuthRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_rejections_total",
				Help: "Total number of unauthorized or forbidden requests",
			},
			[]string{"reason"},
		),
		WorkoutsLogged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ironcrew_workouts_logged_total",
			Help: "Workouts logged",
		}),
		AchievementsUnlocked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ironcrew_achievements_unlocked_total",
				Help: "Achievements unlocked, by achievement",
			},
			[]string{"achievement"},
		),
		CompetitionsFinalized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ironcrew_competitions_finalized_total",
				Help: "Competitions finalized, by result (win or tie)",
			},
			[]string{"result"},
		),
		DuelsFinalized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ironcrew_duels_finalized_total",
				Help: "Duels finalized, by result (win or tie)",
			},
			[]string{"result"},
		),
		MatchmakingPairs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ironcrew_matchmaking_pairs_total",
			Help: "Matchmaking competitions created from the queue",
		}),
		LeaderboardCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ironcrew_leaderboard_cache_total",
				Help: "Leaderboard aggregation cache lookups, by result (hit or miss)",
			},
			[]string{"result"},
		),
		JobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ironcrew_job_runs_total",
				Help: "Periodic job runs, by job and outcome (ok, error, skipped)",
			},
			[]string{"job", "outcome"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ironcrew_job_duration_seconds",
				Help:    "Duration of periodic job runs",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job"},
		),
		SSEClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ironcrew_sse_clients",
			Help: "Open event streams",
		}),
		SSEEventsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ironcrew_sse_events_dropped_total",
				Help: "Events not delivered, by reason (slow_client, queue_full)",
			},
			[]string{"reason"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthRejections,
		m.WorkoutsLogged,
		m.AchievementsUnlocked,
		m.CompetitionsFinalized,
		m.DuelsFinalized,
		m.MatchmakingPairs,
		m.LeaderboardCache,
		m.JobRuns,
		m.JobDuration,
		m.SSEClients,
		m.SSEEventsDropped,
	)
	return m
}

// NewNoop returns collectors registered on a private registry, for tests and
// tools that do not export metrics.
func NewNoop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Result labels a finished contest.
func Result(winner *string) string {
	if winner == nil {
		return "tie"
	}
	return "win"
}

// Middleware records request counts and durations. The path label is the chi
// route pattern so IDs in paths do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Initialize with 200 OK in case WriteHeader isn't called explicitly
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		m.HTTPRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(ww.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())

		switch ww.statusCode {
		case http.StatusUnauthorized:
			m.AuthRejections.WithLabelValues("401_unauthorized").Inc()
		case http.StatusForbidden:
			m.AuthRejections.WithLabelValues("403_forbidden").Inc()
		}
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach Flush on the SSE stream.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
