// Package board maintains a live client-side mirror of the dashboard
// state. Local edits apply immediately and persist after a debounce;
// remote events from the stream merge in unless the user is mid-edit
// on the same field, in which case the local draft wins until blur.
package board

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/atelierboard/atelierboard/internal/reorder"
	"github.com/atelierboard/atelierboard/pkg/debounce"
	"github.com/atelierboard/atelierboard/pkg/models"
)

// saveDelay is how long after the last keystroke a field persists.
// Long enough to coalesce a typing burst, short enough that closing
// the tab right after typing rarely loses anything.
const saveDelay = 700 * time.Millisecond

// saveTimeout bounds each background persistence call.
const saveTimeout = 10 * time.Second

// Saver persists board edits and refetches state for reconciliation.
// The HTTP API client implements it.
type Saver interface {
	SaveNote(ctx context.Context, person string, content *string, todos []models.Todo) error
	SaveWorkflowItem(ctx context.Context, id string, content *string, done *bool) error
	SaveWorkflowOrder(ctx context.Context, itemType models.WorkflowType, ids []string) error
	SavePlanningOrder(ctx context.Context, ids []string) error
	DeleteWorkflowItem(ctx context.Context, id string) error
	FetchWorkflow(ctx context.Context) (map[models.WorkflowType][]models.WorkflowItem, error)
}

// Board is the client-side state mirror. All methods are safe for
// concurrent use; the stream consumer and the UI share one instance.
type Board struct {
	mu sync.Mutex

	workflow map[models.WorkflowType][]models.WorkflowItem
	planning []models.PlanningItem
	notes    map[string]models.PersonNote

	// editing tracks fields with an active local draft, keyed by
	// editKey. Remote changes to these fields are suppressed.
	editing map[string]bool

	debouncer *debounce.Scheduler
	saver     Saver
	logger    *zerolog.Logger
}

// New creates an empty board backed by saver.
func New(saver Saver, logger *zerolog.Logger) *Board {
	return &Board{
		workflow:  make(map[models.WorkflowType][]models.WorkflowItem),
		notes:     make(map[string]models.PersonNote),
		editing:   make(map[string]bool),
		debouncer: debounce.NewScheduler(),
		saver:     saver,
		logger:    logger,
	}
}

// Close cancels pending debounced saves.
func (b *Board) Close() {
	b.debouncer.Stop()
}

// SetSnapshot replaces the mirror wholesale, e.g. after initial load
// or a reconnect refetch.
func (b *Board) SetSnapshot(
	workflow map[models.WorkflowType][]models.WorkflowItem,
	planning []models.PlanningItem,
	notes []models.PersonNote,
) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.workflow = make(map[models.WorkflowType][]models.WorkflowItem, len(workflow))
	for t, items := range workflow {
		b.workflow[t] = append([]models.WorkflowItem(nil), items...)
	}
	b.planning = append([]models.PlanningItem(nil), planning...)
	b.notes = make(map[string]models.PersonNote, len(notes))
	for _, note := range notes {
		b.notes[note.Person] = note
	}
}

// Workflow returns a copy of one type's list in display order.
func (b *Board) Workflow(itemType models.WorkflowType) []models.WorkflowItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.WorkflowItem(nil), b.workflow[itemType]...)
}

// Planning returns a copy of the planning list in display order.
func (b *Board) Planning() []models.PlanningItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.PlanningItem(nil), b.planning...)
}

// Note returns one person's note.
func (b *Board) Note(person string) (models.PersonNote, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	note, ok := b.notes[person]
	return note, ok
}

// Editing field keys, for BeginEditing/EndEditing callers.

// NoteContentKey is the editing key for a person note's text.
func NoteContentKey(person string) string { return "note:" + person + ":content" }

// NoteTodosKey is the editing key for a person note's todo list.
func NoteTodosKey(person string) string { return "note:" + person + ":todos" }

// WorkflowContentKey is the editing key for a workflow item's text.
func WorkflowContentKey(id string) string { return "workflow:" + id + ":content" }

// BeginEditing marks a field as having an active local draft. Remote
// events for the field are suppressed until EndEditing.
func (b *Board) BeginEditing(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.editing[key] = true
}

// EndEditing clears the draft mark and flushes any pending save so the
// field commits on blur instead of waiting out the debounce.
func (b *Board) EndEditing(key string) {
	b.mu.Lock()
	delete(b.editing, key)
	b.mu.Unlock()

	b.debouncer.Flush(key)
}

func (b *Board) isEditing(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.editing[key]
}

// save runs one persistence call with a bounded context.
func (b *Board) save(op string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		b.logger.Error().Err(err).Str("op", op).Msg("Persistence failed, server copy is stale until next sync")
	}
}

// EditNoteContent applies a local content edit immediately and
// schedules its persistence. Repeated calls within the debounce window
// coalesce into one save carrying the final text.
func (b *Board) EditNoteContent(person, content string) {
	b.mu.Lock()
	note := b.notes[person]
	note.Person = person
	note.Content = content
	b.notes[person] = note
	b.mu.Unlock()

	key := NoteContentKey(person)
	b.debouncer.Schedule(key, saveDelay, func() {
		b.save("save note content", func(ctx context.Context) error {
			return b.saver.SaveNote(ctx, person, &content, nil)
		})
	})
}

// EditNoteTodos applies a local todo-list edit immediately and
// schedules its persistence under a key independent of the content
// field.
func (b *Board) EditNoteTodos(person string, todos []models.Todo) {
	b.mu.Lock()
	note := b.notes[person]
	note.Person = person
	note.Todos = append([]models.Todo(nil), todos...)
	b.notes[person] = note
	b.mu.Unlock()

	key := NoteTodosKey(person)
	b.debouncer.Schedule(key, saveDelay, func() {
		b.save("save note todos", func(ctx context.Context) error {
			return b.saver.SaveNote(ctx, person, nil, todos)
		})
	})
}

// EditWorkflowContent applies a local text edit to a workflow item and
// schedules its persistence.
func (b *Board) EditWorkflowContent(id, content string) {
	b.mu.Lock()
	b.patchWorkflowLocked(id, func(item *models.WorkflowItem) {
		item.Content = content
	})
	b.mu.Unlock()

	key := WorkflowContentKey(id)
	b.debouncer.Schedule(key, saveDelay, func() {
		b.save("save workflow content", func(ctx context.Context) error {
			return b.saver.SaveWorkflowItem(ctx, id, &content, nil)
		})
	})
}

// ToggleWorkflowDone flips an item's done flag and persists
// immediately; checkbox clicks are discrete, not burst-typed.
func (b *Board) ToggleWorkflowDone(ctx context.Context, id string) error {
	b.mu.Lock()
	var done bool
	found := b.patchWorkflowLocked(id, func(item *models.WorkflowItem) {
		item.Done = !item.Done
		done = item.Done
	})
	b.mu.Unlock()
	if !found {
		return nil
	}
	return b.saver.SaveWorkflowItem(ctx, id, nil, &done)
}

// patchWorkflowLocked applies fn to the item with the given id.
// Caller holds b.mu.
func (b *Board) patchWorkflowLocked(id string, fn func(*models.WorkflowItem)) bool {
	for t, items := range b.workflow {
		for i := range items {
			if items[i].ID == id {
				fn(&items[i])
				b.workflow[t] = items
				return true
			}
		}
	}
	return false
}

// ReorderWorkflow applies a drop result locally (positions 0..n-1 in
// the given order) and persists the order in one call. Only the named
// type's list is touched.
func (b *Board) ReorderWorkflow(ctx context.Context, itemType models.WorkflowType, ids []string) error {
	b.mu.Lock()
	byID := make(map[string]models.WorkflowItem, len(b.workflow[itemType]))
	for _, item := range b.workflow[itemType] {
		byID[item.ID] = item
	}
	next := make([]models.WorkflowItem, 0, len(ids))
	for _, update := range reorder.Renumber(ids) {
		item, ok := byID[update.ID]
		if !ok {
			continue
		}
		item.Position = update.Position
		next = append(next, item)
	}
	b.workflow[itemType] = next
	b.mu.Unlock()

	return b.saver.SaveWorkflowOrder(ctx, itemType, ids)
}

// ReorderPlanning applies a drop result to the planning list and
// persists the order.
func (b *Board) ReorderPlanning(ctx context.Context, ids []string) error {
	b.mu.Lock()
	byID := make(map[string]models.PlanningItem, len(b.planning))
	for _, item := range b.planning {
		byID[item.ID] = item
	}
	next := make([]models.PlanningItem, 0, len(ids))
	for _, update := range reorder.Renumber(ids) {
		item, ok := byID[update.ID]
		if !ok {
			continue
		}
		item.Position = update.Position
		next = append(next, item)
	}
	b.planning = next
	b.mu.Unlock()

	return b.saver.SavePlanningOrder(ctx, ids)
}

// DeleteWorkflowItem removes an item optimistically. If the server
// rejects the delete, the list is refetched so the mirror converges
// back to the authoritative state.
func (b *Board) DeleteWorkflowItem(ctx context.Context, id string) error {
	b.mu.Lock()
	for t, items := range b.workflow {
		for i := range items {
			if items[i].ID == id {
				b.workflow[t] = append(items[:i:i], items[i+1:]...)
				break
			}
		}
	}
	b.mu.Unlock()

	if err := b.saver.DeleteWorkflowItem(ctx, id); err != nil {
		b.logger.Warn().Err(err).Str("id", id).Msg("Delete rejected, refetching workflow state")
		fresh, fetchErr := b.saver.FetchWorkflow(ctx)
		if fetchErr != nil {
			b.logger.Error().Err(fetchErr).Msg("Workflow refetch failed")
			return err
		}
		b.mu.Lock()
		b.workflow = fresh
		b.mu.Unlock()
		return err
	}
	return nil
}

// Apply merges one remote event into the mirror. Events touching a
// field with an active local draft are dropped; the draft commits on
// blur and last write wins at the store.
func (b *Board) Apply(event models.Event) {
	switch payload := event.Payload.(type) {
	case models.WorkflowItem:
		b.applyWorkflowItem(event.Topic, payload)
	case models.PlanningItem:
		b.applyPlanningItem(event.Topic, payload)
	case models.Deleted:
		b.applyDeleted(event.Topic, payload)
	case models.NoteChange:
		b.applyNoteChange(payload)
	}
}

func (b *Board) applyWorkflowItem(topic models.Topic, item models.WorkflowItem) {
	if topic == models.TopicWorkflowUpdated && b.isEditing(WorkflowContentKey(item.ID)) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.workflow[item.Type]
	replaced := false
	for i := range items {
		if items[i].ID == item.ID {
			items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, item)
	}
	reorder.Sort(items,
		func(i models.WorkflowItem) int { return i.Position },
		func(i models.WorkflowItem) string { return i.ID })
	b.workflow[item.Type] = items
}

func (b *Board) applyPlanningItem(_ models.Topic, item models.PlanningItem) {
	b.mu.Lock()
	defer b.mu.Unlock()

	replaced := false
	for i := range b.planning {
		if b.planning[i].ID == item.ID {
			b.planning[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		b.planning = append(b.planning, item)
	}
	reorder.Sort(b.planning,
		func(i models.PlanningItem) int { return i.Position },
		func(i models.PlanningItem) string { return i.ID })
}

func (b *Board) applyDeleted(topic models.Topic, del models.Deleted) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch topic {
	case models.TopicWorkflowDeleted:
		for t, items := range b.workflow {
			for i := range items {
				if items[i].ID == del.ID {
					b.workflow[t] = append(items[:i:i], items[i+1:]...)
					return
				}
			}
		}
	case models.TopicPlanningDeleted:
		for i := range b.planning {
			if b.planning[i].ID == del.ID {
				b.planning = append(b.planning[:i:i], b.planning[i+1:]...)
				return
			}
		}
	}
}

func (b *Board) applyNoteChange(change models.NoteChange) {
	contentSuppressed := change.Content != nil && b.isEditing(NoteContentKey(change.Person))
	todosSuppressed := change.Todos != nil && b.isEditing(NoteTodosKey(change.Person))

	b.mu.Lock()
	defer b.mu.Unlock()

	note := b.notes[change.Person]
	note.Person = change.Person
	if change.Content != nil && !contentSuppressed {
		note.Content = *change.Content
	}
	if change.Todos != nil && !todosSuppressed {
		note.Todos = append([]models.Todo(nil), change.Todos...)
	}
	b.notes[change.Person] = note
}
