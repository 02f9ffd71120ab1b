// Package server provides the HTTP server for the dashboard API. It
// wires the store, the event bus, and the realtime transports (SSE and
// WebSocket) behind one handler.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/atelierboard/atelierboard/internal/server/cache"
	"github.com/atelierboard/atelierboard/internal/server/events"
	"github.com/atelierboard/atelierboard/internal/server/sse"
	ws "github.com/atelierboard/atelierboard/internal/server/websocket"
	"github.com/atelierboard/atelierboard/internal/store"
	"github.com/atelierboard/atelierboard/pkg/models"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	store        *store.Store
	bus          *events.Bus
	broadcast    *events.Broadcaster
	boardStream  *sse.Stream
	ordersStream *sse.Stream
	wsHub        *ws.Hub
	upgrader     websocket.Upgrader
	cache        *cache.Cache
	logger       *zerolog.Logger
	config       Config
	ctx          context.Context
	cancel       context.CancelFunc
}

// New creates a server wired to the given store.
func New(st *store.Store, cfg Config, logger *zerolog.Logger) *Server {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 30 * time.Second
	}

	bus := events.NewBus(logger)
	broadcast := events.NewBroadcaster(bus, logger)
	boardStream := sse.NewStream(bus, models.BoardTopics, logger)
	ordersStream := sse.NewStream(bus, []models.Topic{models.TopicNewOrder}, logger)

	wsHub := ws.NewHub(logger)
	wsHub.Attach(bus, models.AllTopics)

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		store:        st,
		bus:          bus,
		broadcast:    broadcast,
		boardStream:  boardStream,
		ordersStream: ordersStream,
		wsHub:        wsHub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		cache:  cache.New(cfg.CacheTTL, cfg.CacheTTL*2),
		logger: logger,
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts background services. Open SSE connections run inside
// their own request goroutines and need no start here.
func (s *Server) Start() {
	go s.wsHub.Run(s.ctx)
	s.logger.Debug().Msg("Background services started")
}

// Handler returns the configured http.Handler with the middleware
// chain applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// Bus returns the server's event bus. Exposed for tests that publish
// events directly.
func (s *Server) Bus() *events.Bus {
	return s.bus
}

// BoardStream returns the SSE handler carrying board topics.
func (s *Server) BoardStream() *sse.Stream {
	return s.boardStream
}

// OrdersStream returns the SSE handler carrying new-order events.
func (s *Server) OrdersStream() *sse.Stream {
	return s.ordersStream
}

// Shutdown stops background services and waits briefly for them to
// wind down.
func (s *Server) Shutdown(_ context.Context) error {
	s.logger.Info().Msg("Shutting down server background services")
	s.cancel()

	// Give the hub a moment to drop its clients.
	time.Sleep(100 * time.Millisecond)
	return nil
}
