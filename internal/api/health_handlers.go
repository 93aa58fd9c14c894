package api

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/sync/errgroup"
)

const checkTimeout = 2 * time.Second

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// healthCheck tests one dependency. Required checks make the server unhealthy when
// they fail; optional ones only degrade it.
type healthCheck struct {
	name     string
	required bool
	check    func(ctx context.Context) ComponentHealth
}

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Reports the status of every dependency. Always answers 200.",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)

	huma.Register(s.api, huma.Operation{
		OperationID: "livenessCheck",
		Method:      http.MethodGet,
		Path:        "/health/live",
		Summary:     "Liveness check",
		Tags:        []string{"Health"},
	}, func(context.Context, *struct{}) (*LivenessOutput, error) {
		out := &LivenessOutput{}
		out.Body.Status = "ok"
		return out, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "readinessCheck",
		Method:      http.MethodGet,
		Path:        "/health/ready",
		Summary:     "Readiness check",
		Description: "Answers 503 while a required dependency is down.",
		Tags:        []string{"Health"},
	}, s.handleReadiness)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Time the check took"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

// ReadinessOutput carries the report with a 200 or 503 status.
type ReadinessOutput struct {
	Status int
	Body   HealthResponse
}

// LivenessOutput answers as long as the process serves HTTP.
type LivenessOutput struct {
	Body struct {
		Status string `json:"status" example:"ok"`
	}
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	return &HealthOutput{Body: s.runChecks(ctx)}, nil
}

func (s *Server) handleReadiness(ctx context.Context, _ *struct{}) (*ReadinessOutput, error) {
	report := s.runChecks(ctx)
	status := http.StatusOK
	if report.Status == statusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	return &ReadinessOutput{Status: status, Body: report}, nil
}

// runChecks checks every dependency concurrently.
func (s *Server) runChecks(ctx context.Context) HealthResponse {
	results := make([]ComponentHealth, len(s.checks))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range s.checks {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, checkTimeout)
			defer cancel()
			results[i] = p.check(pctx)
			return nil
		})
	}
	_ = g.Wait()

	report := HealthResponse{Status: statusHealthy, Components: make(map[string]ComponentHealth, len(s.checks))}
	for i, p := range s.checks {
		r := results[i]
		report.Components[p.name] = r
		report.Status = worse(report.Status, effective(r.Status, p.required))
	}
	return report
}

// effective downgrades an optional failure to degraded.
func effective(status string, required bool) string {
	if status == statusUnhealthy && !required {
		return statusDegraded
	}
	return status
}

var severity = []string{statusHealthy, statusDegraded, statusUnhealthy}

func worse(a, b string) string {
	if slices.Index(severity, b) > slices.Index(severity, a) {
		return b
	}
	return a
}

// buildChecks assembles the check list from what the server was given.
func (s *Server) buildChecks(db Pinger, extra map[string]Pinger) []healthCheck {
	checks := []healthCheck{
		{name: "database", required: true, check: pingCheck(db, "database not configured")},
		{name: "sse", check: s.checkSSEManager},
	}

	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		checks = append(checks, healthCheck{name: name, check: pingCheck(extra[name], name+" not configured")})
	}
	return checks
}

// pingCheck times one Ping. A nil pinger reports degraded.
func pingCheck(p Pinger, missing string) func(context.Context) ComponentHealth {
	return func(ctx context.Context) ComponentHealth {
		if p == nil {
			return ComponentHealth{Status: statusDegraded, Message: missing}
		}

		start := time.Now()
		err := p.Ping(ctx)
		latency := time.Since(start).String()
		if err != nil {
			return ComponentHealth{Status: statusUnhealthy, Latency: latency, Message: err.Error()}
		}
		return ComponentHealth{Status: statusHealthy, Latency: latency}
	}
}

func (s *Server) checkSSEManager(context.Context) ComponentHealth {
	if s.sseManager == nil {
		return ComponentHealth{Status: statusDegraded, Message: "event streams disabled"}
	}
	return ComponentHealth{Status: statusHealthy, Message: formatSSEStatus(s.sseManager.ClientCount())}
}

func formatSSEStatus(count int) string {
	switch count {
	case 0:
		return "no connected clients"
	case 1:
		return "1 connected client"
	default:
		return fmt.Sprintf("%d connected clients", count)
	}
}
