package handlers

import (
	"net/http"
	"time"

	"github.com/atelierboard/atelierboard/internal/server/response"
)

// HandleHealth handles GET /health. Liveness only; it never touches
// the store.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
	})
}

// HandleReady handles GET /ready. Ready means the store answers.
func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("Readiness check failed")
		response.ServiceUnavailable(w, "store unreachable")
		return
	}
	response.OK(w, map[string]any{
		"status":      "ready",
		"sse_clients": h.boardStream.ClientCount() + h.ordersStream.ClientCount(),
		"ws_clients":  h.wsHub.ClientCount(),
	})
}
