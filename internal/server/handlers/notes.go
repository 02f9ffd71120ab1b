package handlers

import (
	"net/http"

	"github.com/atelierboard/atelierboard/internal/server/response"
	"github.com/atelierboard/atelierboard/internal/store"
	"github.com/atelierboard/atelierboard/pkg/models"
)

// HandleListNotes handles GET /notes.
// Always returns one note per team member, creating empty rows as
// needed.
func (h *Handlers) HandleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.store.ListNotes(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, notes)
}

// HandleGetNote handles GET /notes/{person}.
func (h *Handlers) HandleGetNote(w http.ResponseWriter, r *http.Request, person string) {
	note, err := h.store.GetNote(r.Context(), person)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, note)
}

type updateNoteRequest struct {
	Content *string       `json:"content"`
	Todos   []models.Todo `json:"todos"`
}

// HandleUpdateNote handles PUT /notes/{person}.
// Partial update: absent content leaves the text alone, absent todos
// leave the list alone. Concurrent saves resolve last-write-wins; the
// note-changed broadcast carries only what this request changed.
func (h *Handlers) HandleUpdateNote(w http.ResponseWriter, r *http.Request, person string) {
	var req updateNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body", err.Error())
		return
	}

	note, err := h.store.UpdateNote(r.Context(), person, store.NotePatch{
		Content: req.Content,
		Todos:   req.Todos,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.broadcast.NoteChanged(person, req.Content, req.Todos)
	response.OK(w, note)
}
