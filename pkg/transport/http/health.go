package http

import (
	"context"
	"net/http"
	"time"
)

// readyTimeout bounds the history store ping behind /readyz.
const readyTimeout = 2 * time.Second

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}

// handleReadyz reports not ready while the history store is unreachable.
func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if store := h.engine.Store(); store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := store.HealthCheck(ctx); err != nil {
			h.logger.WarnContext(r.Context(), "readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("history store unavailable\n"))
			return
		}
	}
	w.Write([]byte("ok\n"))
}
