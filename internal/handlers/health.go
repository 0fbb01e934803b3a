package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// Check probes one dependency
type Check func(ctx context.Context) error

// Health serves the health, liveness and readiness endpoints
type Health struct {
	checks   map[string]Check
	critical map[string]bool
}

// NewHealth creates an empty health reporter
func NewHealth() *Health {
	return &Health{checks: map[string]Check{}, critical: map[string]bool{}}
}

// Add registers a check. Critical checks also gate readiness.
func (h *Health) Add(name string, check Check, critical bool) *Health {
	h.checks[name] = check
	h.critical[name] = critical
	return h
}

// Register mounts the health endpoints on mux
func (h *Health) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", h.HealthHandler)
	mux.HandleFunc("/healthz", h.LivenessHandler) // Kubernetes liveness probe
	mux.HandleFunc("/readyz", h.ReadinessHandler) // Kubernetes readiness probe
}

func (h *Health) run(ctx context.Context, onlyCritical bool) (map[string]any, []string) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		if onlyCritical && !h.critical[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]any, len(names))
	var failed []string
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			failed = append(failed, name)
			results[name] = map[string]any{"status": "unhealthy", "error": err.Error()}
			continue
		}
		results[name] = map[string]any{"status": "healthy"}
	}
	return results, failed
}

// HealthHandler reports every dependency
func (h *Health) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks, failed := h.run(ctx, false)
	status, code := "ok", http.StatusOK
	if len(failed) > 0 {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

// LivenessHandler returns 200 while the process is running; dependencies are not checked
func (h *Health) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "alive",
		"timestamp": time.Now().Unix(),
	})
}

// ReadinessHandler returns 503 when a critical dependency is down
func (h *Health) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, failed := h.run(ctx, true); len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "not_ready",
			"reason":    failed[0] + "_unavailable",
			"timestamp": time.Now().Unix(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"timestamp": time.Now().Unix(),
	})
}
