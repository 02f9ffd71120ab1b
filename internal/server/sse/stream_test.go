package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/atelierboard/atelierboard/internal/server/events"
	"github.com/atelierboard/atelierboard/pkg/models"
)

// openStream connects one SSE client to srv and returns a line channel
// plus a cancel func that simulates client disconnect.
func openStream(t *testing.T, srv *httptest.Server) (<-chan string, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		cancel()
		t.Fatalf("connecting stream: %v", err)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}

	lines := make(chan string, 64)
	go func() {
		defer resp.Body.Close()
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	return lines, cancel
}

// waitLine reads lines until one matches want or the timeout elapses.
func waitLine(t *testing.T, lines <-chan string, want string) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("stream closed before %q", want)
			}
			if line == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for line %q", want)
		}
	}
}

// TestStream_ConnectedFrame tests that the first frame announces the
// established stream.
func TestStream_ConnectedFrame(t *testing.T) {
	logger := zerolog.Nop()
	bus := events.NewBus(&logger)
	stream := NewStream(bus, []models.Topic{models.TopicNewOrder}, &logger)

	srv := httptest.NewServer(stream)
	defer srv.Close()

	lines, cancel := openStream(t, srv)
	defer cancel()

	waitLine(t, lines, "event: connected")
	waitLine(t, lines, "data: {}")
}

// TestStream_FanOut tests that a single publish is observed exactly
// once by each of N concurrent clients.
func TestStream_FanOut(t *testing.T) {
	logger := zerolog.Nop()
	bus := events.NewBus(&logger)
	stream := NewStream(bus, []models.Topic{models.TopicWorkflowCreated}, &logger)

	srv := httptest.NewServer(stream)
	defer srv.Close()

	const n = 3
	clients := make([]<-chan string, n)
	for i := 0; i < n; i++ {
		lines, cancel := openStream(t, srv)
		defer cancel()
		waitLine(t, lines, "event: connected")
		clients[i] = lines
	}

	bus.Publish(models.TopicWorkflowCreated, models.WorkflowItem{
		ID:      "wf_1",
		Content: "Buy thread",
		Type:    models.WorkflowAchat,
	})

	for i, lines := range clients {
		waitLine(t, lines, "event: workflow:created")

		// The data line follows the event name immediately.
		select {
		case line := <-lines:
			if !strings.HasPrefix(line, "data: ") || !strings.Contains(line, "Buy thread") {
				t.Errorf("client %d: unexpected data line %q", i, line)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("client %d: no data line", i)
		}
	}
}

// TestStream_DisconnectCleanup tests that a client disconnect releases
// the bus subscription and that later publishes reach nobody stale.
func TestStream_DisconnectCleanup(t *testing.T) {
	logger := zerolog.Nop()
	bus := events.NewBus(&logger)
	stream := NewStream(bus, []models.Topic{models.TopicNewOrder, models.TopicNoteChanged}, &logger)

	srv := httptest.NewServer(stream)
	defer srv.Close()

	baseline := bus.SubscriberCount()

	lines, cancel := openStream(t, srv)
	waitLine(t, lines, "event: connected")

	if count := bus.SubscriberCount(); count != baseline+2 {
		t.Fatalf("expected %d subscriptions while connected, got %d", baseline+2, count)
	}

	cancel()

	// The handler unwinds asynchronously after the abort.
	deadline := time.After(2 * time.Second)
	for bus.SubscriberCount() != baseline {
		select {
		case <-deadline:
			t.Fatalf("subscriptions not released: %d (baseline %d)",
				bus.SubscriberCount(), baseline)
		case <-time.After(10 * time.Millisecond):
		}
	}

	if count := stream.ClientCount(); count != 0 {
		t.Errorf("expected 0 clients after disconnect, got %d", count)
	}

	// Publishing afterward must not panic or reach the gone client.
	bus.Publish(models.TopicNewOrder, models.Order{ID: "ord_after"})
}

// TestStream_HeartbeatSurvivesIdle tests that an idle connection keeps
// receiving comment heartbeats and stays open.
func TestStream_HeartbeatSurvivesIdle(t *testing.T) {
	logger := zerolog.Nop()
	bus := events.NewBus(&logger)
	stream := NewStream(bus, []models.Topic{models.TopicNewOrder}, &logger)
	stream.Heartbeat = 20 * time.Millisecond

	srv := httptest.NewServer(stream)
	defer srv.Close()

	lines, cancel := openStream(t, srv)
	defer cancel()

	waitLine(t, lines, "event: connected")

	// No events published; expect several heartbeats anyway.
	for i := 0; i < 3; i++ {
		waitLine(t, lines, ": heartbeat")
	}

	// Still open: a publish after the idle stretch is delivered.
	bus.Publish(models.TopicNewOrder, models.Order{ID: "ord_1"})
	waitLine(t, lines, "event: new-order")
}
