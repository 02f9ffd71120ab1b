// Package sse provides the Server-Sent Events endpoints for real-time
// dashboard updates.
//
// Each connection subscribes to the event bus for its own lifetime and
// streams frames in the wire format
//
//	event: <topic>\ndata: <json>\n\n
//
// with an initial "connected" frame and a comment-only heartbeat every
// 25 seconds to keep intermediary proxies from timing out the idle
// connection.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/atelierboard/atelierboard/internal/server/events"
	"github.com/atelierboard/atelierboard/pkg/models"
)

// DefaultHeartbeat is the interval between keepalive comment frames.
const DefaultHeartbeat = 25 * time.Second

// clientBuffer is the per-connection event buffer. A client that falls
// further behind than this loses events (it recovers on reload; the
// store stays authoritative).
const clientBuffer = 64

// Stream is an http.Handler that serves one SSE connection per request,
// relaying the configured bus topics.
type Stream struct {
	bus    *events.Bus
	topics []models.Topic
	logger *zerolog.Logger

	// Heartbeat overrides DefaultHeartbeat; useful in tests.
	Heartbeat time.Duration

	connections atomic.Int64
}

// NewStream creates an SSE handler relaying the given topics.
func NewStream(bus *events.Bus, topics []models.Topic, logger *zerolog.Logger) *Stream {
	return &Stream{
		bus:       bus,
		topics:    topics,
		logger:    logger,
		Heartbeat: DefaultHeartbeat,
	}
}

// ClientCount returns the number of currently open connections.
func (s *Stream) ClientCount() int {
	return int(s.connections.Load())
}

// ServeHTTP handles one SSE connection until the client disconnects,
// a write fails, or the server shuts down.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Disable caching and proxy buffering so frames flush immediately.
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := make(chan models.Event, clientBuffer)

	subs := make([]*events.Subscription, 0, len(s.topics))
	for _, topic := range s.topics {
		subs = append(subs, s.bus.Subscribe(topic, func(e models.Event) {
			select {
			case client <- e:
			default:
				s.logger.Warn().
					Str("topic", string(e.Topic)).
					Msg("SSE client buffer full, event skipped")
			}
		}))
	}

	heartbeat := time.NewTicker(s.Heartbeat)

	// Cleanup must run exactly once whether the connection ends by
	// client abort, write error, or server shutdown. A leaked
	// subscription or ticker here grows the process for every
	// connection churned.
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			heartbeat.Stop()
			for _, sub := range subs {
				s.bus.Unsubscribe(sub)
			}
			total := s.connections.Add(-1)
			s.logger.Info().
				Int64("total_clients", total).
				Msg("SSE client disconnected")
		})
	}
	defer cleanup()

	total := s.connections.Add(1)
	s.logger.Info().
		Int64("total_clients", total).
		Str("remote_addr", r.RemoteAddr).
		Msg("SSE client connected")

	// Initial frame so the client can tell "established" from "still
	// negotiating".
	if err := s.writeFrame(w, flusher, "connected", json.RawMessage("{}")); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case event := <-client:
			data, err := json.Marshal(event.Payload)
			if err != nil {
				s.logger.Error().
					Err(err).
					Str("topic", string(event.Topic)).
					Msg("Failed to marshal SSE event payload")
				continue
			}
			if err := s.writeFrame(w, flusher, string(event.Topic), data); err != nil {
				// Client presumed gone; the disconnect path cleans up.
				return
			}
		}
	}
}

// writeFrame writes one named event frame and flushes it.
func (s *Stream) writeFrame(w http.ResponseWriter, flusher http.Flusher, name string, data []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
