// Package events provides the in-process publish/subscribe bus that
// fans order, workflow, planning, and note changes out to the
// transport layers (SSE, WebSocket).
//
// The bus is an explicitly constructed object injected into request
// handlers, never an ambient global, so tests can build isolated
// instances and a process can never end up with two buses by accident.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/atelierboard/atelierboard/pkg/models"
)

// maxSubscriptions is a safety ceiling. Crossing it almost always
// means connections churn without running their cleanup path.
const maxSubscriptions = 200

// Handler receives events published on a subscribed topic. Handlers
// run synchronously on the publisher's goroutine and must not block.
type Handler func(models.Event)

// Subscription is an opaque handle returned by Subscribe and used to
// remove the handler again. Unsubscribing twice is a no-op.
type Subscription struct {
	topic models.Topic
	id    uint64
}

// Bus distributes events to topic subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[models.Topic]map[uint64]Handler
	nextID   uint64
	count    int
	logger   *zerolog.Logger
}

// NewBus creates a new event bus.
func NewBus(logger *zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[models.Topic]map[uint64]Handler),
		logger:   logger,
	}
}

// Subscribe registers handler for topic and returns a handle for
// removal. There is no hard subscription limit, but growth past the
// safety ceiling is logged since it indicates a cleanup leak.
func (b *Bus) Subscribe(topic models.Topic, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID

	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[uint64]Handler)
	}
	b.handlers[topic][id] = handler
	b.count++

	if b.count > maxSubscriptions {
		b.logger.Warn().
			Int("subscriptions", b.count).
			Str("topic", string(topic)).
			Msg("Subscription count exceeds safety ceiling, possible leak")
	}

	return &Subscription{topic: topic, id: id}
}

// Unsubscribe removes the handler behind sub. Safe to call multiple
// times and with a nil handle.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	topicHandlers, ok := b.handlers[sub.topic]
	if !ok {
		return
	}
	if _, ok := topicHandlers[sub.id]; !ok {
		return
	}
	delete(topicHandlers, sub.id)
	if len(topicHandlers) == 0 {
		delete(b.handlers, sub.topic)
	}
	b.count--
}

// Publish synchronously invokes all current subscribers of topic with
// the payload. A panicking handler never prevents the remaining
// handlers from running and never propagates to the publisher.
// Delivery order across subscribers is unspecified.
func (b *Bus) Publish(topic models.Topic, payload any) {
	event := models.Event{
		Topic:     topic,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	// Snapshot under read lock so handlers can unsubscribe (their own
	// or other subscriptions) from inside the callback without
	// perturbing this delivery.
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[topic]))
	for _, h := range b.handlers[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.invoke(h, event)
	}

	b.logger.Debug().
		Str("topic", string(topic)).
		Int("subscribers", len(handlers)).
		Msg("Event published")
}

// invoke runs one handler with panic isolation.
func (b *Bus) invoke(h Handler, event models.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Interface("panic", r).
				Str("topic", string(event.Topic)).
				Msg("Event handler panicked")
		}
	}()
	h(event)
}

// SubscriberCount returns the current number of subscriptions across
// all topics.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// TopicSubscriberCount returns the number of subscriptions for one topic.
func (b *Bus) TopicSubscriberCount(topic models.Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}
