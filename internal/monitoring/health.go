package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/modserve/internal/logging"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is the result of one check.
type HealthCheck struct {
	Name     string                 `json:"name"`
	Status   HealthStatus           `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// HealthCheckFunc computes one check on demand.
type HealthCheckFunc func(ctx context.Context) HealthCheck

// HealthResponse is the body served by the health endpoint.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Version   string        `json:"version,omitempty"`
	GoVersion string        `json:"go_version"`
	Checks    []HealthCheck `json:"checks"`
}

// HealthMonitor runs registered checks when asked.
type HealthMonitor struct {
	checks  map[string]HealthCheckFunc
	mutex   sync.RWMutex
	started time.Time
	version string
	logger  logging.Logger
}

// NewHealthMonitor creates a monitor reporting version.
func NewHealthMonitor(version string, logger logging.Logger) *HealthMonitor {
	return &HealthMonitor{
		checks:  make(map[string]HealthCheckFunc),
		started: time.Now(),
		version: version,
		logger:  logger.WithComponent("health"),
	}
}

// RegisterCheck adds or replaces the check called name.
func (hm *HealthMonitor) RegisterCheck(name string, check HealthCheckFunc) {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()
	hm.checks[name] = check
}

// Check runs every check. The overall status is the worst individual one.
func (hm *HealthMonitor) Check(ctx context.Context) HealthResponse {
	hm.mutex.RLock()
	names := make([]string, 0, len(hm.checks))
	for name := range hm.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthCheckFunc, len(hm.checks))
	for name, fn := range hm.checks {
		checks[name] = fn
	}
	hm.mutex.RUnlock()
	sort.Strings(names)

	resp := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Uptime:    time.Since(hm.started).Round(time.Second).String(),
		Version:   hm.version,
		GoVersion: runtime.Version(),
		Checks:    make([]HealthCheck, 0, len(names)),
	}
	for _, name := range names {
		result := checks[name](ctx)
		result.Name = name
		resp.Checks = append(resp.Checks, result)
		resp.Status = worse(resp.Status, result.Status)
	}
	return resp
}

// ServeHTTP writes the health response as JSON; unhealthy is a 503.
func (hm *HealthMonitor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := hm.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if resp.Status == HealthStatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		hm.logger.Error(r.Context(), err, "failed to encode health response")
	}
}

func worse(a, b HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{
		HealthStatusHealthy:   0,
		HealthStatusDegraded:  1,
		HealthStatusUnhealthy: 2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
