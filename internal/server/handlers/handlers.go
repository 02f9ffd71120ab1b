// Package handlers provides the HTTP request handlers for the
// dashboard API.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/atelierboard/atelierboard/internal/server/cache"
	"github.com/atelierboard/atelierboard/internal/server/events"
	"github.com/atelierboard/atelierboard/internal/server/response"
	"github.com/atelierboard/atelierboard/internal/server/sse"
	ws "github.com/atelierboard/atelierboard/internal/server/websocket"
	"github.com/atelierboard/atelierboard/internal/store"
)

// Handlers provides access to all HTTP handlers.
type Handlers struct {
	store        *store.Store
	broadcast    *events.Broadcaster
	boardStream  *sse.Stream
	ordersStream *sse.Stream
	wsHub        *ws.Hub
	upgrader     websocket.Upgrader
	cache        *cache.Cache
	logger       *zerolog.Logger
	startTime    time.Time
}

// New creates a new Handlers instance.
func New(
	st *store.Store,
	broadcast *events.Broadcaster,
	boardStream *sse.Stream,
	ordersStream *sse.Stream,
	wsHub *ws.Hub,
	upgrader websocket.Upgrader,
	c *cache.Cache,
	logger *zerolog.Logger,
) *Handlers {
	return &Handlers{
		store:        st,
		broadcast:    broadcast,
		boardStream:  boardStream,
		ordersStream: ordersStream,
		wsHub:        wsHub,
		upgrader:     upgrader,
		cache:        c,
		logger:       logger,
		startTime:    time.Now(),
	}
}

// decodeJSON decodes the request body into dst, rejecting unknown
// fields so client typos surface as 400s instead of silent no-ops.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeError maps a typed error to the HTTP envelope.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	h.logger.Error().Err(err).Msg("Request failed")
	response.ErrorFromType(w, err)
}
