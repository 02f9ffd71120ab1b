package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierboard/atelierboard/pkg/models"
)

// feedServer serves a scripted SSE response once per connection.
func feedServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			fmt.Fprint(w, frame)
			flusher.Flush()
		}
	}))
}

func runConsumer(t *testing.T, url string) (*Consumer, chan models.Event, chan struct{}, context.CancelFunc) {
	t.Helper()
	logger := zerolog.Nop()
	c := NewConsumer(url, &logger)
	c.Backoff = 10 * time.Millisecond

	events := make(chan models.Event, 16)
	connected := make(chan struct{}, 4)
	c.OnEvent = func(e models.Event) { events <- e }
	c.OnConnect = func() { connected <- struct{}{} }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("consumer did not stop after cancel")
		}
	})
	return c, events, connected, cancel
}

func TestConsumer_DecodesTypedEvents(t *testing.T) {
	ts := feedServer(t, []string{
		"event: connected\ndata: {}\n\n",
		": heartbeat\n\n",
		"event: workflow:created\ndata: {\"id\":\"wf_1\",\"content\":\"Buy thread\",\"type\":\"ACHAT\",\"position\":0}\n\n",
		"event: workflow:deleted\ndata: {\"id\":\"wf_1\"}\n\n",
		"event: note-changed\ndata: {\"person\":\"melina\",\"content\":\"hello\"}\n\n",
	})
	defer ts.Close()

	_, events, connected, _ := runConsumer(t, ts.URL)

	select {
	case <-connected:
	case <-time.After(time.Second):
		t.Fatal("no connected callback")
	}

	e := <-events
	item, ok := e.Payload.(models.WorkflowItem)
	require.True(t, ok, "expected WorkflowItem, got %#v", e.Payload)
	assert.Equal(t, "Buy thread", item.Content)
	assert.Equal(t, models.TopicWorkflowCreated, e.Topic)

	e = <-events
	del, ok := e.Payload.(models.Deleted)
	require.True(t, ok)
	assert.Equal(t, "wf_1", del.ID)

	e = <-events
	change, ok := e.Payload.(models.NoteChange)
	require.True(t, ok)
	assert.Equal(t, "melina", change.Person)
	require.NotNil(t, change.Content)
	assert.Equal(t, "hello", *change.Content)
}

func TestConsumer_DropsMalformedFrames(t *testing.T) {
	ts := feedServer(t, []string{
		"event: connected\ndata: {}\n\n",
		"event: workflow:created\ndata: {not json\n\n",
		"event: mystery:topic\ndata: {}\n\n",
		"data: {\"orphan\":true}\n\n",
		"event: workflow:updated\ndata: {\"id\":\"wf_2\",\"content\":\"ok\",\"type\":\"DTF\",\"position\":1}\n\n",
	})
	defer ts.Close()

	_, events, _, _ := runConsumer(t, ts.URL)

	// Only the well-formed frame survives.
	select {
	case e := <-events:
		item, ok := e.Payload.(models.WorkflowItem)
		require.True(t, ok)
		assert.Equal(t, "wf_2", item.ID)
	case <-time.After(time.Second):
		t.Fatal("well-formed event never arrived")
	}

	select {
	case e := <-events:
		t.Fatalf("unexpected extra event %#v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestConsumer_ReconnectsAfterDrop verifies the fixed-backoff
// reconnect: the server ends each response immediately, so the
// consumer should connect repeatedly.
func TestConsumer_ReconnectsAfterDrop(t *testing.T) {
	var mu sync.Mutex
	conns := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		conns++
		mu.Unlock()
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		fmt.Fprint(w, "event: connected\ndata: {}\n\n")
	}))
	defer ts.Close()

	_, _, connected, _ := runConsumer(t, ts.URL)

	for i := 0; i < 3; i++ {
		select {
		case <-connected:
		case <-time.After(time.Second):
			t.Fatalf("connection %d never established", i+1)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, conns, 3)
}

func TestConsumer_CancelDuringBackoff(t *testing.T) {
	// Nothing listens here, so the consumer sits in backoff.
	logger := zerolog.Nop()
	c := NewConsumer("http://127.0.0.1:1/board/stream", &logger)
	c.Backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel during backoff")
	}
}
