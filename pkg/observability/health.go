package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthStatus is the rolled-up state of the service or of one check.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

const defaultCheckTimeout = 2 * time.Second

// HealthCheck probes one dependency. A failing critical check makes the
// service unhealthy; any other failure only degrades it.
type HealthCheck struct {
	Name     string
	Critical bool
	Timeout  time.Duration
	Probe    func(context.Context) error
}

// CheckStatus is the outcome of one check.
type CheckStatus struct {
	Status   HealthStatus `json:"status"`
	Message  string       `json:"message,omitempty"`
	Duration string       `json:"duration"`
}

// HealthResponse is the body served on /health.
type HealthResponse struct {
	Status  HealthStatus           `json:"status"`
	Version string                 `json:"version"`
	Uptime  string                 `json:"uptime"`
	Checks  map[string]CheckStatus `json:"checks,omitempty"`
}

// HealthChecker runs the registered checks concurrently on every request.
type HealthChecker struct {
	version string
	started time.Time

	mu     sync.RWMutex
	checks []HealthCheck
}

// NewHealthChecker creates a checker reporting version and uptime from now.
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{version: version, started: time.Now()}
}

// RegisterCheck adds a check, replacing any check with the same name.
func (hc *HealthChecker) RegisterCheck(check HealthCheck) {
	if check.Timeout <= 0 {
		check.Timeout = defaultCheckTimeout
	}
	hc.mu.Lock()
	defer hc.mu.Unlock()
	for i := range hc.checks {
		if hc.checks[i].Name == check.Name {
			hc.checks[i] = check
			return
		}
	}
	hc.checks = append(hc.checks, check)
	sort.Slice(hc.checks, func(i, j int) bool { return hc.checks[i].Name < hc.checks[j].Name })
}

// Check runs every check and rolls the results up.
func (hc *HealthChecker) Check(ctx context.Context) HealthResponse {
	hc.mu.RLock()
	checks := append([]HealthCheck(nil), hc.checks...)
	hc.mu.RUnlock()

	results := make([]CheckStatus, len(checks))
	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			results[i] = run(ctx, check)
			return nil
		})
	}
	_ = g.Wait()

	resp := HealthResponse{
		Status:  HealthStatusHealthy,
		Version: hc.version,
		Uptime:  time.Since(hc.started).Round(time.Second).String(),
	}
	if len(checks) > 0 {
		resp.Checks = make(map[string]CheckStatus, len(checks))
	}
	for i, check := range checks {
		resp.Checks[check.Name] = results[i]
		resp.Status = worse(resp.Status, results[i].Status)
	}
	return resp
}

func run(ctx context.Context, check HealthCheck) CheckStatus {
	ctx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- check.Probe(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	status := CheckStatus{Status: HealthStatusHealthy, Duration: time.Since(start).String()}
	if err != nil {
		status.Status = HealthStatusDegraded
		if check.Critical {
			status.Status = HealthStatusUnhealthy
		}
		status.Message = err.Error()
	}
	return status
}

func worse(a, b HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{HealthStatusHealthy: 0, HealthStatusDegraded: 1, HealthStatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// HealthHandler serves the full report. Only an unhealthy service answers 503.
func (hc *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := hc.Check(r.Context())
		code := http.StatusOK
		if resp.Status == HealthStatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeHealth(w, code, resp)
	}
}

// ReadinessHandler answers 200 only while every check passes, so a degraded
// cache takes the instance out of rotation.
func (hc *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hc.Check(r.Context()).Status != HealthStatusHealthy {
			writeHealth(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeHealth(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// LivenessHandler answers 200 while the process can serve HTTP at all.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

func writeHealth(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// CacheCheck probes the shared classification cache. It is not critical: a
// cache outage only costs classification latency.
func CacheCheck(ping func(context.Context) error) HealthCheck {
	return HealthCheck{Name: "cache", Probe: ping}
}
