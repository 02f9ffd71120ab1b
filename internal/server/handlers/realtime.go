package handlers

import (
	"net/http"

	"github.com/google/uuid"

	ws "github.com/atelierboard/atelierboard/internal/server/websocket"
)

// HandleBoardSSE handles GET /board/stream. The stream handler owns
// the connection for its whole lifetime.
func (h *Handlers) HandleBoardSSE(w http.ResponseWriter, r *http.Request) {
	h.boardStream.ServeHTTP(w, r)
}

// HandleOrdersSSE handles GET /orders/stream, carrying only new-order
// events so the notification listener stays quiet during board edits.
func (h *Handlers) HandleOrdersSSE(w http.ResponseWriter, r *http.Request) {
	h.ordersStream.ServeHTTP(w, r)
}

// HandleWebSocket handles GET /updates/ws, upgrading to a WebSocket
// that mirrors the SSE event feed.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(uuid.NewString(), h.wsHub, conn)
	client.Register()

	go client.WritePump()
	go client.ReadPump()
}
