package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/atelierboard/atelierboard/internal/server/handlers"
	"github.com/atelierboard/atelierboard/internal/server/middleware"
	"github.com/atelierboard/atelierboard/internal/server/response"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	mux := http.NewServeMux()

	h := handlers.New(
		s.store,
		s.broadcast,
		s.boardStream,
		s.ordersStream,
		s.wsHub,
		s.upgrader,
		s.cache,
		s.logger,
	)

	s.registerRoutes(mux, h)

	return s.applyMiddleware(mux)
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux, h *handlers.Handlers) {
	prefix := s.config.PathPrefix

	// Avoid 404 noise from browsers.
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc(prefix+"/health", h.HandleHealth)
	mux.HandleFunc(prefix+"/ready", h.HandleReady)

	// Workflow lists
	mux.HandleFunc(prefix+"/workflow", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.HandleListWorkflow(w, r)
		case http.MethodPost:
			h.HandleCreateWorkflowItem(w, r)
		default:
			response.MethodNotAllowed(w, r.Method)
		}
	})
	mux.HandleFunc(prefix+"/workflow/reorder", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			response.MethodNotAllowed(w, r.Method)
			return
		}
		h.HandleReorderWorkflow(w, r)
	})
	mux.HandleFunc(prefix+"/workflow/", func(w http.ResponseWriter, r *http.Request) {
		id := extractPathParam(r.URL.Path, prefix+"/workflow/")
		if id == "" {
			response.NotFound(w, "Workflow item ID required", "")
			return
		}
		switch r.Method {
		case http.MethodPatch, http.MethodPut:
			h.HandleUpdateWorkflowItem(w, r, id)
		case http.MethodDelete:
			h.HandleDeleteWorkflowItem(w, r, id)
		default:
			response.MethodNotAllowed(w, r.Method)
		}
	})

	// Planning table
	mux.HandleFunc(prefix+"/planning", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.HandleListPlanning(w, r)
		case http.MethodPost:
			h.HandleCreatePlanningItem(w, r)
		default:
			response.MethodNotAllowed(w, r.Method)
		}
	})
	mux.HandleFunc(prefix+"/planning/reorder", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			response.MethodNotAllowed(w, r.Method)
			return
		}
		h.HandleReorderPlanning(w, r)
	})
	mux.HandleFunc(prefix+"/planning/", func(w http.ResponseWriter, r *http.Request) {
		id := extractPathParam(r.URL.Path, prefix+"/planning/")
		if id == "" {
			response.NotFound(w, "Planning item ID required", "")
			return
		}
		switch r.Method {
		case http.MethodPatch, http.MethodPut:
			h.HandleUpdatePlanningItem(w, r, id)
		case http.MethodDelete:
			h.HandleDeletePlanningItem(w, r, id)
		default:
			response.MethodNotAllowed(w, r.Method)
		}
	})

	// Person notes
	mux.HandleFunc(prefix+"/notes", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			response.MethodNotAllowed(w, r.Method)
			return
		}
		h.HandleListNotes(w, r)
	})
	mux.HandleFunc(prefix+"/notes/", func(w http.ResponseWriter, r *http.Request) {
		person := extractPathParam(r.URL.Path, prefix+"/notes/")
		if person == "" {
			response.NotFound(w, "Person required", "")
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.HandleGetNote(w, r, person)
		case http.MethodPut, http.MethodPatch:
			h.HandleUpdateNote(w, r, person)
		default:
			response.MethodNotAllowed(w, r.Method)
		}
	})

	// Orders
	mux.HandleFunc(prefix+"/orders", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.HandleListOrders(w, r)
		case http.MethodPost:
			h.HandleIngestOrder(w, r)
		default:
			response.MethodNotAllowed(w, r.Method)
		}
	})
	mux.HandleFunc(prefix+"/orders/test", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			response.MethodNotAllowed(w, r.Method)
			return
		}
		h.HandleTestOrder(w, r)
	})
	mux.HandleFunc(prefix+"/orders/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			response.MethodNotAllowed(w, r.Method)
			return
		}
		h.HandleOrderStats(w, r)
	})
	mux.HandleFunc(prefix+"/orders/", func(w http.ResponseWriter, r *http.Request) {
		id := extractPathParam(r.URL.Path, prefix+"/orders/")
		if id == "" {
			response.NotFound(w, "Order ID required", "")
			return
		}
		if r.Method != http.MethodGet {
			response.MethodNotAllowed(w, r.Method)
			return
		}
		h.HandleGetOrder(w, r, id)
	})

	// Real-time endpoints. The exact /orders/stream pattern takes
	// precedence over the /orders/ subtree above.
	mux.HandleFunc(prefix+"/board/stream", h.HandleBoardSSE)
	mux.HandleFunc(prefix+"/orders/stream", h.HandleOrdersSSE)
	mux.HandleFunc(prefix+"/updates/ws", h.HandleWebSocket)

	if s.config.MetricsEnabled {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = fmt.Fprintf(w, "# TYPE atelierboard_sse_clients gauge\n")
			_, _ = fmt.Fprintf(w, "atelierboard_sse_clients %d\n", s.boardStream.ClientCount()+s.ordersStream.ClientCount())
			_, _ = fmt.Fprintf(w, "# TYPE atelierboard_ws_clients gauge\n")
			_, _ = fmt.Fprintf(w, "atelierboard_ws_clients %d\n", s.wsHub.ClientCount())
			_, _ = fmt.Fprintf(w, "# TYPE atelierboard_bus_subscribers gauge\n")
			_, _ = fmt.Fprintf(w, "atelierboard_bus_subscribers %d\n", s.bus.SubscriberCount())
		})
	}
}

// applyMiddleware wraps handler with the middleware chain.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	cfg := s.config

	if cfg.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit, s.logger)
		handler = middleware.RateLimit(rateLimiter)(handler)
	}

	if cfg.CORSEnabled {
		corsConfig := middleware.DefaultCORSConfig()
		if len(cfg.CORSOrigins) > 0 {
			corsConfig.AllowedOrigins = cfg.CORSOrigins
			corsConfig.AllowAll = false
		} else {
			corsConfig.AllowAll = true
		}
		handler = middleware.CORS(corsConfig)(handler)
	}

	handler = middleware.Logger(s.logger)(handler)
	handler = middleware.Recovery(s.logger)(handler)

	return handler
}

// extractPathParam extracts the first path segment after prefix.
func extractPathParam(path, prefix string) string {
	trimmed := strings.TrimPrefix(path, prefix)
	parts := strings.Split(trimmed, "/")
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}
