package handlers

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler responds with service health information. Check, when set,
// probes the backing store.
type HealthHandler struct {
	Store string
	Check func(ctx context.Context) error
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payload := healthResponse{Status: "ok", Store: h.Store}

	if h.Check != nil {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()
		if err := h.Check(checkCtx); err != nil {
			payload.Status = "unavailable"
			respondJSON(ctx, w, http.StatusServiceUnavailable, payload)
			return
		}
	}

	respondJSON(ctx, w, http.StatusOK, payload)
}
