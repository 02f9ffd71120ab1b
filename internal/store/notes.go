package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/atelierboard/atelierboard/pkg/errors"
	"github.com/atelierboard/atelierboard/pkg/models"
)

// ListNotes returns the note of every team member, creating empty rows
// on first access so the dashboard always renders all four panels.
func (s *Store) ListNotes(ctx context.Context) ([]models.PersonNote, error) {
	notes := make([]models.PersonNote, 0, len(models.People))
	for _, person := range models.People {
		note, err := s.GetNote(ctx, person)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, nil
}

// GetNote returns one person's note, creating an empty row if none
// exists yet.
func (s *Store) GetNote(ctx context.Context, person string) (models.PersonNote, error) {
	if !models.ValidPerson(person) {
		return models.PersonNote{}, errors.NewValidationError("person", person, "unknown team member")
	}

	var (
		note    models.PersonNote
		todos   string
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT person, content, todos, updated_at FROM person_notes WHERE person = ?`, person,
	).Scan(&note.Person, &note.Content, &todos, &updated)
	if err == sql.ErrNoRows {
		return s.createEmptyNote(ctx, person)
	}
	if err != nil {
		return models.PersonNote{}, errors.NewStoreError("get person note", err)
	}

	note.UpdatedAt = fromMillis(updated)
	if err := json.Unmarshal([]byte(todos), &note.Todos); err != nil {
		return models.PersonNote{}, errors.NewStoreError("decode note todos", err)
	}
	if note.Todos == nil {
		note.Todos = []models.Todo{}
	}
	return note, nil
}

func (s *Store) createEmptyNote(ctx context.Context, person string) (models.PersonNote, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO person_notes (person, content, todos, updated_at) VALUES (?, '', '[]', ?)
		 ON CONFLICT(person) DO NOTHING`, person, toMillis(now))
	if err != nil {
		return models.PersonNote{}, errors.NewStoreError("create person note", err)
	}
	return models.PersonNote{Person: person, Content: "", Todos: []models.Todo{}, UpdatedAt: now}, nil
}

// NotePatch is a partial note update. Content nil leaves the text
// unchanged; Todos nil leaves the todo list unchanged.
type NotePatch struct {
	Content *string
	Todos   []models.Todo
}

// UpdateNote applies a partial update to a person's note and returns
// the stored row. Concurrent saves resolve last-write-wins.
func (s *Store) UpdateNote(ctx context.Context, person string, patch NotePatch) (models.PersonNote, error) {
	if !models.ValidPerson(person) {
		return models.PersonNote{}, errors.NewValidationError("person", person, "unknown team member")
	}

	// Ensure the row exists before the partial update.
	if _, err := s.GetNote(ctx, person); err != nil {
		return models.PersonNote{}, err
	}

	now := time.Now().UTC()
	if patch.Content != nil {
		_, err := s.db.ExecContext(ctx,
			`UPDATE person_notes SET content = ?, updated_at = ? WHERE person = ?`,
			*patch.Content, toMillis(now), person)
		if err != nil {
			return models.PersonNote{}, errors.NewStoreError("update note content", err)
		}
	}
	if patch.Todos != nil {
		encoded, err := json.Marshal(patch.Todos)
		if err != nil {
			return models.PersonNote{}, errors.NewStoreError("encode note todos", err)
		}
		_, err = s.db.ExecContext(ctx,
			`UPDATE person_notes SET todos = ?, updated_at = ? WHERE person = ?`,
			string(encoded), toMillis(now), person)
		if err != nil {
			return models.PersonNote{}, errors.NewStoreError("update note todos", err)
		}
	}
	return s.GetNote(ctx, person)
}
