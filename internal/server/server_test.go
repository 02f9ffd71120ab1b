package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierboard/atelierboard/internal/store"
	"github.com/atelierboard/atelierboard/pkg/models"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "atelierboard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	logger := zerolog.Nop()
	cfg := DefaultConfig()
	cfg.RateLimit = 0 // tests hammer endpoints from one address

	srv := New(st, cfg, &logger)
	srv.Start()
	t.Cleanup(func() { _ = srv.Shutdown(nil) })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func postJSON(t *testing.T, url string, body any) (*http.Response, envelope) {
	t.Helper()
	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(encoded))
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func getJSON(t *testing.T, url string) (*http.Response, envelope) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func TestServer_Health(t *testing.T) {
	_, ts := newTestServer(t)

	resp, env := getJSON(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, env.Error)

	resp, env = getJSON(t, ts.URL+"/api/v1/ready")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, env.Error)
}

func TestServer_WorkflowLifecycle(t *testing.T) {
	_, ts := newTestServer(t)
	base := ts.URL + "/api/v1/workflow"

	// Create into an empty list lands at position 0.
	resp, env := postJSON(t, base, map[string]any{"content": "Buy thread", "type": "ACHAT"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Nil(t, env.Error)

	var created models.WorkflowItem
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, 0, created.Position)
	assert.Equal(t, models.WorkflowAchat, created.Type)

	resp, env = postJSON(t, base, map[string]any{"content": "Buy ink", "type": "ACHAT"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var second models.WorkflowItem
	require.NoError(t, json.Unmarshal(env.Data, &second))
	assert.Equal(t, 1, second.Position)

	// Toggle done via PATCH.
	body, _ := json.Marshal(map[string]any{"done": true})
	req, err := http.NewRequest(http.MethodPatch, base+"/"+created.ID, bytes.NewReader(body))
	require.NoError(t, err)
	patchResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer patchResp.Body.Close()
	assert.Equal(t, http.StatusOK, patchResp.StatusCode)

	// Reorder the ACHAT list.
	resp, env = postJSON(t, base+"/reorder", map[string]any{
		"type": "ACHAT",
		"ids":  []string{second.ID, created.ID},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, env.Error)

	var list []models.WorkflowItem
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, 0, list[0].Position)
	assert.Equal(t, created.ID, list[1].ID)
	assert.Equal(t, 1, list[1].Position)

	// Delete.
	req, err = http.NewRequest(http.MethodDelete, base+"/"+created.ID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()
	assert.Equal(t, http.StatusOK, delResp.StatusCode)

	req, err = http.NewRequest(http.MethodDelete, base+"/"+created.ID, nil)
	require.NoError(t, err)
	delResp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, delResp.StatusCode)
}

// TestServer_CreateBroadcastsToStreamClient covers the core scenario:
// a second user with an open stream sees a created item appear without
// reloading.
func TestServer_CreateBroadcastsToStreamClient(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.BoardStream().Heartbeat = time.Hour // keep frames deterministic

	resp, err := http.Get(ts.URL + "/api/v1/board/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream; charset=utf-8", resp.Header.Get("Content-Type"))

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				lines <- line
			}
		}
		close(lines)
	}()

	waitLine := func(want string) string {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream closed waiting for %q", want)
				}
				if strings.HasPrefix(line, want) {
					return line
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	waitLine("event: connected")

	postResp, env := postJSON(t, ts.URL+"/api/v1/workflow", map[string]any{
		"content": "Buy thread", "type": "ACHAT",
	})
	require.Equal(t, http.StatusCreated, postResp.StatusCode)
	require.Nil(t, env.Error)

	waitLine("event: workflow:created")
	data := waitLine("data: ")

	var item models.WorkflowItem
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(data, "data: ")), &item))
	assert.Equal(t, "Buy thread", item.Content)
	assert.Equal(t, 0, item.Position)
}

// TestServer_OrderStreamReceivesNewOrder covers the notification feed:
// an open orders stream sees webhook ingests but no board chatter.
func TestServer_OrderStreamReceivesNewOrder(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.OrdersStream().Heartbeat = time.Hour

	resp, err := http.Get(ts.URL + "/api/v1/orders/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				lines <- line
			}
		}
		close(lines)
	}()

	waitLine := func(want string) string {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream closed waiting for %q", want)
				}
				if strings.HasPrefix(line, want) {
					return line
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	waitLine("event: connected")

	// Board mutations must not leak onto the orders feed.
	postResp, _ := postJSON(t, ts.URL+"/api/v1/workflow", map[string]any{
		"content": "Order DTF film", "type": "DTF",
	})
	require.Equal(t, http.StatusCreated, postResp.StatusCode)

	postResp, _ = postJSON(t, ts.URL+"/api/v1/orders/test", nil)
	require.Equal(t, http.StatusCreated, postResp.StatusCode)

	assert.Equal(t, "event: new-order", waitLine("event: "))
	data := waitLine("data: ")

	var order models.Order
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(data, "data: ")), &order))
	assert.Equal(t, models.PaymentPaid, order.PaymentStatus)
}

func TestServer_OrderWebhookAndStats(t *testing.T) {
	_, ts := newTestServer(t)

	resp, env := postJSON(t, ts.URL+"/api/v1/orders", map[string]any{
		"orderNumber":  "CMD-2001",
		"customerName": "Jeanne Martin",
		"paid":         "OUI",
		"total":        120.0,
		"items": []map[string]any{
			{"name": "Sweat brodé", "quantity": 2, "price": 60.0},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Nil(t, env.Error)

	var order models.Order
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, models.PaymentPaid, order.PaymentStatus)
	require.Len(t, order.Items, 1)

	// A replayed webhook delivery conflicts instead of duplicating.
	resp, env = postJSON(t, ts.URL+"/api/v1/orders", map[string]any{
		"orderNumber":  "CMD-2001",
		"customerName": "Jeanne Martin",
		"paid":         "OUI",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ALREADY_EXISTS", env.Error.Code)

	resp, env = getJSON(t, ts.URL+"/api/v1/orders/"+order.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched models.Order
	require.NoError(t, json.Unmarshal(env.Data, &fetched))
	assert.Equal(t, "CMD-2001", fetched.OrderNumber)
	require.Len(t, fetched.Items, 1)

	resp, env = getJSON(t, ts.URL+"/api/v1/orders/ord_missing")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, env = postJSON(t, ts.URL+"/api/v1/orders/test", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, env = getJSON(t, ts.URL+"/api/v1/orders/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats models.OrderStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 2, stats.TotalOrders)
	assert.Equal(t, 2, stats.PaidOrders)
}

func TestServer_NotesRoundTrip(t *testing.T) {
	_, ts := newTestServer(t)

	resp, env := getJSON(t, ts.URL+"/api/v1/notes")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var notes []models.PersonNote
	require.NoError(t, json.Unmarshal(env.Data, &notes))
	require.Len(t, notes, 4)

	body, _ := json.Marshal(map[string]any{"content": "Commander le film DTF"})
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/notes/melina", bytes.NewReader(body))
	require.NoError(t, err)
	putResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer putResp.Body.Close()
	require.Equal(t, http.StatusOK, putResp.StatusCode)

	resp, env = getJSON(t, ts.URL+"/api/v1/notes/melina")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var note models.PersonNote
	require.NoError(t, json.Unmarshal(env.Data, &note))
	assert.Equal(t, "Commander le film DTF", note.Content)

	resp, _ = getJSON(t, ts.URL+"/api/v1/notes/intrus")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/workflow", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_Metrics(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), fmt.Sprintf("atelierboard_sse_clients %d", 0))
}
