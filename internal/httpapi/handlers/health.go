package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/bengobox/oauth-provider/internal/clock"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	clock  clock.Clock
	checks map[string]Pinger
}

func NewHealthHandler(clk clock.Clock, checks map[string]Pinger) *HealthHandler {
	if clk == nil {
		clk = clock.System{}
	}
	return &HealthHandler{clock: clk, checks: checks}
}

// Live responds with basic service status.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   h.clock.Now(),
	})
}

// Ready pings every dependency and fails with 503 if any is down.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status": overall,
		"checks": results,
		"time":   h.clock.Now(),
	})
}
