package board

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierboard/atelierboard/pkg/errors"
	"github.com/atelierboard/atelierboard/pkg/models"
)

// fakeSaver records persistence calls.
type fakeSaver struct {
	mu            sync.Mutex
	noteSaves     []noteSave
	itemSaves     []itemSave
	orderSaves    [][]string
	deletes       []string
	deleteErr     error
	fetchWorkflow map[models.WorkflowType][]models.WorkflowItem
}

type noteSave struct {
	person  string
	content *string
	todos   []models.Todo
}

type itemSave struct {
	id      string
	content *string
	done    *bool
}

func (f *fakeSaver) SaveNote(_ context.Context, person string, content *string, todos []models.Todo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noteSaves = append(f.noteSaves, noteSave{person: person, content: content, todos: todos})
	return nil
}

func (f *fakeSaver) SaveWorkflowItem(_ context.Context, id string, content *string, done *bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.itemSaves = append(f.itemSaves, itemSave{id: id, content: content, done: done})
	return nil
}

func (f *fakeSaver) SaveWorkflowOrder(_ context.Context, _ models.WorkflowType, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderSaves = append(f.orderSaves, ids)
	return nil
}

func (f *fakeSaver) SavePlanningOrder(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderSaves = append(f.orderSaves, ids)
	return nil
}

func (f *fakeSaver) DeleteWorkflowItem(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return f.deleteErr
}

func (f *fakeSaver) FetchWorkflow(_ context.Context) (map[models.WorkflowType][]models.WorkflowItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchWorkflow, nil
}

func (f *fakeSaver) notes() []noteSave {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]noteSave(nil), f.noteSaves...)
}

func newTestBoard(t *testing.T) (*Board, *fakeSaver) {
	t.Helper()
	saver := &fakeSaver{}
	logger := zerolog.Nop()
	b := New(saver, &logger)
	t.Cleanup(b.Close)
	return b, saver
}

// TestBoard_EditsCoalesceIntoOneSave types a burst into one note and
// expects a single save carrying the final text.
func TestBoard_EditsCoalesceIntoOneSave(t *testing.T) {
	b, saver := newTestBoard(t)

	b.EditNoteContent("melina", "C")
	b.EditNoteContent("melina", "Co")
	b.EditNoteContent("melina", "Commander le film")

	// Mirror reflects the draft immediately.
	note, ok := b.Note("melina")
	require.True(t, ok)
	assert.Equal(t, "Commander le film", note.Content)

	// Nothing persisted yet.
	assert.Empty(t, saver.notes())

	b.EndEditing(NoteContentKey("melina"))

	saves := saver.notes()
	require.Len(t, saves, 1)
	require.NotNil(t, saves[0].content)
	assert.Equal(t, "Commander le film", *saves[0].content)
	assert.Equal(t, "melina", saves[0].person)
}

func TestBoard_ContentAndTodosDebounceIndependently(t *testing.T) {
	b, saver := newTestBoard(t)

	b.EditNoteContent("loic", "texte")
	b.EditNoteTodos("loic", []models.Todo{{ID: "td_1", Text: "relancer", Done: false}})

	b.EndEditing(NoteContentKey("loic"))
	b.EndEditing(NoteTodosKey("loic"))

	saves := saver.notes()
	require.Len(t, saves, 2)
	assert.NotNil(t, saves[0].content)
	assert.Nil(t, saves[0].todos)
	assert.Nil(t, saves[1].content)
	assert.NotNil(t, saves[1].todos)
}

// TestBoard_RemoteEventSuppressedWhileEditing covers the draft
// protection: a remote change to a field being edited must not clobber
// the local text, while changes to other fields still land.
func TestBoard_RemoteEventSuppressedWhileEditing(t *testing.T) {
	b, _ := newTestBoard(t)

	b.BeginEditing(NoteContentKey("melina"))
	b.EditNoteContent("melina", "mon brouillon")

	remote := "texte distant"
	b.Apply(models.Event{
		Topic:   models.TopicNoteChanged,
		Payload: models.NoteChange{Person: "melina", Content: &remote},
	})

	note, _ := b.Note("melina")
	assert.Equal(t, "mon brouillon", note.Content, "draft must survive remote event")

	// A todos change for the same person is a different field and lands.
	b.Apply(models.Event{
		Topic:   models.TopicNoteChanged,
		Payload: models.NoteChange{Person: "melina", Todos: []models.Todo{{ID: "td_9", Text: "x"}}},
	})
	note, _ = b.Note("melina")
	require.Len(t, note.Todos, 1)

	// After blur, remote events land again.
	b.EndEditing(NoteContentKey("melina"))
	b.Apply(models.Event{
		Topic:   models.TopicNoteChanged,
		Payload: models.NoteChange{Person: "melina", Content: &remote},
	})
	note, _ = b.Note("melina")
	assert.Equal(t, "texte distant", note.Content)
}

// TestBoard_ApplyClearedTodoList covers deleting the last todo: the
// remote event carries an empty non-nil list and must empty the local
// one rather than read as "no todos change".
func TestBoard_ApplyClearedTodoList(t *testing.T) {
	b, _ := newTestBoard(t)

	b.Apply(models.Event{
		Topic:   models.TopicNoteChanged,
		Payload: models.NoteChange{Person: "charlie", Todos: []models.Todo{{ID: "td_1", Text: "broder logo"}}},
	})
	note, _ := b.Note("charlie")
	require.Len(t, note.Todos, 1)

	b.Apply(models.Event{
		Topic:   models.TopicNoteChanged,
		Payload: models.NoteChange{Person: "charlie", Todos: []models.Todo{}},
	})
	note, _ = b.Note("charlie")
	assert.Empty(t, note.Todos, "cleared list must land")
}

func TestBoard_ApplyWorkflowEvents(t *testing.T) {
	b, _ := newTestBoard(t)

	created := models.WorkflowItem{ID: "wf_1", Content: "Buy thread", Type: models.WorkflowAchat, Position: 0}
	b.Apply(models.Event{Topic: models.TopicWorkflowCreated, Payload: created})

	list := b.Workflow(models.WorkflowAchat)
	require.Len(t, list, 1)
	assert.Equal(t, "Buy thread", list[0].Content)

	updated := created
	updated.Done = true
	b.Apply(models.Event{Topic: models.TopicWorkflowUpdated, Payload: updated})
	list = b.Workflow(models.WorkflowAchat)
	assert.True(t, list[0].Done)

	b.Apply(models.Event{Topic: models.TopicWorkflowDeleted, Payload: models.Deleted{ID: "wf_1"}})
	assert.Empty(t, b.Workflow(models.WorkflowAchat))
}

func TestBoard_ReorderWorkflowLocalAndPersisted(t *testing.T) {
	b, saver := newTestBoard(t)

	b.SetSnapshot(map[models.WorkflowType][]models.WorkflowItem{
		models.WorkflowDTF: {
			{ID: "a", Type: models.WorkflowDTF, Position: 0},
			{ID: "b", Type: models.WorkflowDTF, Position: 1},
			{ID: "c", Type: models.WorkflowDTF, Position: 2},
		},
		models.WorkflowAchat: {
			{ID: "x", Type: models.WorkflowAchat, Position: 0},
		},
	}, nil, nil)

	require.NoError(t, b.ReorderWorkflow(context.Background(), models.WorkflowDTF, []string{"c", "a", "b"}))

	list := b.Workflow(models.WorkflowDTF)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, []int{0, 1, 2}, []int{list[0].Position, list[1].Position, list[2].Position})

	// Other bucket untouched.
	other := b.Workflow(models.WorkflowAchat)
	require.Len(t, other, 1)
	assert.Equal(t, 0, other[0].Position)

	saver.mu.Lock()
	defer saver.mu.Unlock()
	require.Len(t, saver.orderSaves, 1)
	assert.Equal(t, []string{"c", "a", "b"}, saver.orderSaves[0])
}

func TestBoard_DeleteFailureRefetches(t *testing.T) {
	b, saver := newTestBoard(t)

	authoritative := map[models.WorkflowType][]models.WorkflowItem{
		models.WorkflowStandard: {
			{ID: "wf_1", Type: models.WorkflowStandard, Position: 0},
		},
	}
	b.SetSnapshot(authoritative, nil, nil)

	saver.deleteErr = errors.NewNotFoundError("workflow item", "wf_1")
	saver.fetchWorkflow = authoritative

	err := b.DeleteWorkflowItem(context.Background(), "wf_1")
	require.Error(t, err)

	// The optimistic removal was rolled back by the refetch.
	list := b.Workflow(models.WorkflowStandard)
	require.Len(t, list, 1)
	assert.Equal(t, "wf_1", list[0].ID)
}

func TestBoard_ToggleWorkflowDone(t *testing.T) {
	b, saver := newTestBoard(t)

	b.SetSnapshot(map[models.WorkflowType][]models.WorkflowItem{
		models.WorkflowAtelier: {{ID: "wf_1", Type: models.WorkflowAtelier}},
	}, nil, nil)

	require.NoError(t, b.ToggleWorkflowDone(context.Background(), "wf_1"))

	list := b.Workflow(models.WorkflowAtelier)
	assert.True(t, list[0].Done)

	saver.mu.Lock()
	defer saver.mu.Unlock()
	require.Len(t, saver.itemSaves, 1)
	require.NotNil(t, saver.itemSaves[0].done)
	assert.True(t, *saver.itemSaves[0].done)
}

// TestBoard_DebounceFiresWithoutBlur verifies the save eventually runs
// on its own if the user stops typing but never blurs the field.
func TestBoard_DebounceFiresWithoutBlur(t *testing.T) {
	b, saver := newTestBoard(t)

	b.EditNoteContent("charlie", "final")

	deadline := time.After(3 * time.Second)
	for len(saver.notes()) == 0 {
		select {
		case <-deadline:
			t.Fatal("debounced save never fired")
		case <-time.After(20 * time.Millisecond):
		}
	}

	saves := saver.notes()
	require.Len(t, saves, 1)
	assert.Equal(t, "final", *saves[0].content)
}
