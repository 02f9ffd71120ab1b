package events

import (
	"github.com/rs/zerolog"

	"github.com/atelierboard/atelierboard/pkg/models"
)

// Broadcaster publishes typed change events after successful store
// writes. Mutation handlers call it instead of the bus directly so the
// topic/payload pairing lives in one place. Publishing is
// fire-and-forget: a crash between the write and the publish costs a
// missed live update, never data.
type Broadcaster struct {
	bus    *Bus
	logger *zerolog.Logger
}

// NewBroadcaster creates a broadcaster on top of bus.
func NewBroadcaster(bus *Bus, logger *zerolog.Logger) *Broadcaster {
	return &Broadcaster{bus: bus, logger: logger}
}

// OrderCreated publishes a new-order event with the order summary.
func (b *Broadcaster) OrderCreated(order models.Order) {
	b.bus.Publish(models.TopicNewOrder, order)
	b.logger.Debug().Str("order_id", order.ID).Msg("New order event published")
}

// WorkflowCreated publishes a workflow:created event.
func (b *Broadcaster) WorkflowCreated(item models.WorkflowItem) {
	b.bus.Publish(models.TopicWorkflowCreated, item)
}

// WorkflowUpdated publishes a workflow:updated event.
func (b *Broadcaster) WorkflowUpdated(item models.WorkflowItem) {
	b.bus.Publish(models.TopicWorkflowUpdated, item)
}

// WorkflowDeleted publishes a workflow:deleted event carrying only the id.
func (b *Broadcaster) WorkflowDeleted(id string) {
	b.bus.Publish(models.TopicWorkflowDeleted, models.Deleted{ID: id})
}

// PlanningCreated publishes a planning:created event.
func (b *Broadcaster) PlanningCreated(item models.PlanningItem) {
	b.bus.Publish(models.TopicPlanningCreated, item)
}

// PlanningUpdated publishes a planning:updated event.
func (b *Broadcaster) PlanningUpdated(item models.PlanningItem) {
	b.bus.Publish(models.TopicPlanningUpdated, item)
}

// PlanningDeleted publishes a planning:deleted event carrying only the id.
func (b *Broadcaster) PlanningDeleted(id string) {
	b.bus.Publish(models.TopicPlanningDeleted, models.Deleted{ID: id})
}

// NoteChanged publishes a note-changed event. Content and todos are
// optional; only the changed part is carried.
func (b *Broadcaster) NoteChanged(person string, content *string, todos []models.Todo) {
	b.bus.Publish(models.TopicNoteChanged, models.NoteChange{
		Person:  person,
		Content: content,
		Todos:   todos,
	})
}
