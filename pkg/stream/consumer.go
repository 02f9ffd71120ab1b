// Package stream provides a reconnecting SSE consumer for the
// dashboard event feed. It is the client-side mirror of the server's
// stream endpoint: it parses frames, decodes typed payloads, and
// reconnects with a fixed backoff whenever the connection drops.
package stream

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/atelierboard/atelierboard/pkg/models"
)

// DefaultBackoff is the fixed delay between reconnect attempts. The
// delay is deliberately constant: the feed is a convenience layer and
// a reload always recovers, so exponential growth buys nothing.
const DefaultBackoff = 10 * time.Second

// Consumer maintains one SSE connection to the event feed, dispatching
// decoded events to OnEvent. Run blocks until the context is
// cancelled.
type Consumer struct {
	url    string
	client *http.Client
	logger *zerolog.Logger

	// Backoff overrides DefaultBackoff; useful in tests.
	Backoff time.Duration

	// OnEvent receives every decoded event. Called from Run's
	// goroutine; implementations decide their own locking.
	OnEvent func(models.Event)

	// OnConnect fires when the server's initial frame arrives, i.e.
	// the connection is established, not merely dialed.
	OnConnect func()

	// OnDisconnect fires when an established connection drops, before
	// the backoff wait.
	OnDisconnect func(err error)
}

// NewConsumer creates a consumer for the feed at url.
func NewConsumer(url string, logger *zerolog.Logger) *Consumer {
	return &Consumer{
		url:     url,
		client:  &http.Client{},
		logger:  logger,
		Backoff: DefaultBackoff,
	}
}

// Run connects and reconnects until ctx is cancelled. Each drop is
// followed by a fixed backoff wait; cancellation during the wait
// returns immediately.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn().
			Err(err).
			Dur("backoff", c.Backoff).
			Msg("Event stream dropped, reconnecting")
		if c.OnDisconnect != nil {
			c.OnDisconnect(err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.Backoff):
		}
	}
}

// consume holds one connection open and dispatches its frames.
func (c *Consumer) consume(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &UnexpectedStatusError{Status: resp.StatusCode}
	}

	var frame frameBuilder
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()

		// Comment lines are heartbeats; they only prove liveness.
		if strings.HasPrefix(line, ":") {
			continue
		}

		if line == "" {
			if name, data, ok := frame.take(); ok {
				c.dispatch(name, data)
			}
			continue
		}

		frame.feed(line)
	}
	return scanner.Err()
}

// dispatch decodes one complete frame and forwards it. Malformed
// frames are dropped; the store stays authoritative and a reload
// recovers anything missed.
func (c *Consumer) dispatch(name string, data string) {
	if name == "connected" {
		c.logger.Debug().Msg("Event stream connected")
		if c.OnConnect != nil {
			c.OnConnect()
		}
		return
	}

	topic := models.Topic(name)
	payload, err := models.DecodePayload(topic, []byte(data))
	if err != nil {
		c.logger.Debug().
			Err(err).
			Str("event", name).
			Msg("Dropping undecodable event frame")
		return
	}

	if c.OnEvent != nil {
		c.OnEvent(models.Event{Topic: topic, Timestamp: time.Now().UTC(), Payload: payload})
	}
}

// frameBuilder accumulates one SSE frame's fields between blank lines.
type frameBuilder struct {
	name string
	data []string
}

func (f *frameBuilder) feed(line string) {
	switch {
	case strings.HasPrefix(line, "event:"):
		f.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
	case strings.HasPrefix(line, "data:"):
		f.data = append(f.data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
	}
}

// take returns the completed frame and resets the builder. A frame
// with no event name or no data is incomplete and discarded.
func (f *frameBuilder) take() (string, string, bool) {
	name, data := f.name, f.data
	f.name, f.data = "", nil
	if name == "" || len(data) == 0 {
		return "", "", false
	}
	return name, strings.Join(data, "\n"), true
}

// UnexpectedStatusError reports a non-200 response from the feed.
type UnexpectedStatusError struct {
	Status int
}

func (e *UnexpectedStatusError) Error() string {
	return "unexpected event stream status " + http.StatusText(e.Status)
}
