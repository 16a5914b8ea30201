// Package health exposes the /healthz endpoint aggregating dependency pings.
package health

import (
	"context"
	"net/http"

	"fides/internal/transport/http/shared"
)

// Check pings one dependency.
type Check func(ctx context.Context) error

type Handler struct {
	checks map[string]Check
}

// New builds the handler from named checks. Nil checks are skipped so main
// can pass optional dependencies unconditionally.
func New(checks map[string]Check) *Handler {
	h := &Handler{checks: make(map[string]Check, len(checks))}
	for name, check := range checks {
		if check != nil {
			h.checks[name] = check
		}
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := http.StatusOK
	body := map[string]string{"status": "ok"}

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body[name] = err.Error()
		} else {
			body[name] = "ok"
		}
	}
	shared.WriteJSON(w, status, body)
}
