package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"github.com/gaepo/sheetlogin/internal/service"
)

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status  string                `json:"status"`            // "healthy" or "unhealthy"
	Checks  map[string]string     `json:"checks"`            // Component check results
	Table   *service.LoaderStatus `json:"table,omitempty"`   // Last table load, if a loader is configured
	Version string                `json:"version,omitempty"` // Optional version info
}

// LoaderStatusReporter exposes the state of the table loader.
type LoaderStatusReporter interface {
	Status() service.LoaderStatus
}

// HealthChecker verifies component health.
type HealthChecker struct {
	sessions SessionCounter
	loader   LoaderStatusReporter
	version  string
}

// NewHealthChecker creates a HealthChecker with optional components.
// Pass nil for components that aren't available.
func NewHealthChecker(sessions SessionCounter, loader LoaderStatusReporter, version string) *HealthChecker {
	return &HealthChecker{
		sessions: sessions,
		loader:   loader,
		version:  version,
	}
}

// Check performs health checks on all components.
func (h *HealthChecker) Check() HealthResponse {
	checks := make(map[string]string)
	healthy := true

	// Size() acquires the store lock; a hang here shows up as a probe timeout.
	if h.sessions != nil {
		checks["session_store"] = fmt.Sprintf("ok: %d sessions, %d authenticated",
			h.sessions.Size(), h.sessions.Authenticated())
	} else {
		checks["session_store"] = "not configured"
	}

	var status *service.LoaderStatus
	if h.loader != nil {
		st := h.loader.Status()
		status = &st
		switch {
		case !st.Healthy():
			checks["table_source"] = "unavailable: " + st.LastError
			healthy = false
		case st.LoadedAt.IsZero():
			checks["table_source"] = "ok: not loaded yet"
		default:
			checks["table_source"] = fmt.Sprintf("ok: %d rows", st.Rows)
		}
	} else {
		checks["table_source"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	result := "healthy"
	if !healthy {
		result = "unhealthy"
	}

	return HealthResponse{
		Status:  result,
		Checks:  checks,
		Table:   status,
		Version: h.version,
	}
}

// Handler returns an HTTP handler for the health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check()

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable) // 503
		} else {
			w.WriteHeader(http.StatusOK) // 200
		}

		_ = json.NewEncoder(w).Encode(health)
	})
}

// healthHandler is the fallback /health handler when no checker is configured.
func healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
}
