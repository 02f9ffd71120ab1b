package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Topic names an event bus channel. Topics are part of the wire
// contract: SSE frames carry the topic as the event name.
type Topic string

// Bus topics.
const (
	TopicNewOrder        Topic = "new-order"
	TopicWorkflowCreated Topic = "workflow:created"
	TopicWorkflowUpdated Topic = "workflow:updated"
	TopicWorkflowDeleted Topic = "workflow:deleted"
	TopicPlanningCreated Topic = "planning:created"
	TopicPlanningUpdated Topic = "planning:updated"
	TopicPlanningDeleted Topic = "planning:deleted"
	TopicNoteChanged     Topic = "note-changed"
)

// BoardTopics are the topics a board view subscribes to (everything
// except order ingestion).
var BoardTopics = []Topic{
	TopicWorkflowCreated,
	TopicWorkflowUpdated,
	TopicWorkflowDeleted,
	TopicPlanningCreated,
	TopicPlanningUpdated,
	TopicPlanningDeleted,
	TopicNoteChanged,
}

// AllTopics covers every topic published by the server.
var AllTopics = []Topic{
	TopicNewOrder,
	TopicWorkflowCreated,
	TopicWorkflowUpdated,
	TopicWorkflowDeleted,
	TopicPlanningCreated,
	TopicPlanningUpdated,
	TopicPlanningDeleted,
	TopicNoteChanged,
}

// Event is one message on the bus. Payload is the typed variant for
// the topic; see DecodePayload for the mapping. Events are immutable
// once published and never persisted.
type Event struct {
	Topic     Topic     `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Deleted is the payload of workflow:deleted and planning:deleted.
type Deleted struct {
	ID string `json:"id"`
}

// NoteChange is the payload of note-changed. Content and Todos are
// nilable so a change to one never clobbers the other on the
// receiving side. Todos must not carry omitempty: an empty non-nil
// slice means "cleared" and has to survive the wire, while nil means
// "unchanged".
type NoteChange struct {
	Person  string  `json:"person"`
	Content *string `json:"content,omitempty"`
	Todos   []Todo  `json:"todos"`
}

// DecodePayload unmarshals a raw event payload into the typed variant
// for its topic. Consumers switch on the returned type instead of
// trusting untyped JSON shapes:
//
//	switch p := payload.(type) {
//	case models.WorkflowItem: ...
//	case models.Deleted: ...
//	}
func DecodePayload(topic Topic, data []byte) (any, error) {
	switch topic {
	case TopicNewOrder:
		var order Order
		if err := json.Unmarshal(data, &order); err != nil {
			return nil, err
		}
		return order, nil
	case TopicWorkflowCreated, TopicWorkflowUpdated:
		var item WorkflowItem
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, err
		}
		return item, nil
	case TopicPlanningCreated, TopicPlanningUpdated:
		var item PlanningItem
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, err
		}
		return item, nil
	case TopicWorkflowDeleted, TopicPlanningDeleted:
		var del Deleted
		if err := json.Unmarshal(data, &del); err != nil {
			return nil, err
		}
		return del, nil
	case TopicNoteChanged:
		var change NoteChange
		if err := json.Unmarshal(data, &change); err != nil {
			return nil, err
		}
		return change, nil
	default:
		return nil, fmt.Errorf("unknown topic %q", topic)
	}
}
