package handlers

import (
	"net/http"

	"github.com/atelierboard/atelierboard/internal/server/response"
	"github.com/atelierboard/atelierboard/internal/store"
	"github.com/atelierboard/atelierboard/pkg/models"
)

// HandleListWorkflow handles GET /workflow.
// Returns all workflow items grouped by type, each list in display order.
func (h *Handlers) HandleListWorkflow(w http.ResponseWriter, r *http.Request) {
	grouped, err := h.store.ListWorkflow(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, grouped)
}

type createWorkflowRequest struct {
	Content string              `json:"content"`
	Type    models.WorkflowType `json:"type"`
}

// HandleCreateWorkflowItem handles POST /workflow.
// The new item is appended to the end of its type's list and a
// workflow:created event is broadcast.
func (h *Handlers) HandleCreateWorkflowItem(w http.ResponseWriter, r *http.Request) {
	var req createWorkflowRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body", err.Error())
		return
	}

	item, err := h.store.CreateWorkflowItem(r.Context(), req.Content, req.Type)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.broadcast.WorkflowCreated(item)
	response.Created(w, item)
}

type updateWorkflowRequest struct {
	Content  *string `json:"content"`
	Done     *bool   `json:"done"`
	Position *int    `json:"position"`
}

// HandleUpdateWorkflowItem handles PATCH /workflow/{id}.
// Absent fields are left unchanged; the full updated item is broadcast.
func (h *Handlers) HandleUpdateWorkflowItem(w http.ResponseWriter, r *http.Request, id string) {
	var req updateWorkflowRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body", err.Error())
		return
	}

	item, err := h.store.UpdateWorkflowItem(r.Context(), id, store.WorkflowPatch{
		Content:  req.Content,
		Done:     req.Done,
		Position: req.Position,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.broadcast.WorkflowUpdated(item)
	response.OK(w, item)
}

// HandleDeleteWorkflowItem handles DELETE /workflow/{id}.
func (h *Handlers) HandleDeleteWorkflowItem(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.DeleteWorkflowItem(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	h.broadcast.WorkflowDeleted(id)
	response.OK(w, map[string]string{"id": id})
}

type reorderWorkflowRequest struct {
	Type models.WorkflowType `json:"type"`
	IDs  []string            `json:"ids"`
}

// HandleReorderWorkflow handles POST /workflow/reorder.
// IDs give the full display order of one type's list after a drop;
// positions are rewritten 0..n-1 in a single transaction. The updated
// list is broadcast item by item so observers converge.
func (h *Handlers) HandleReorderWorkflow(w http.ResponseWriter, r *http.Request) {
	var req reorderWorkflowRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body", err.Error())
		return
	}
	if len(req.IDs) == 0 {
		response.BadRequest(w, "ids must not be empty", "")
		return
	}

	if err := h.store.ReorderWorkflow(r.Context(), req.Type, req.IDs); err != nil {
		h.writeError(w, err)
		return
	}

	grouped, err := h.store.ListWorkflow(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	for _, item := range grouped[req.Type] {
		h.broadcast.WorkflowUpdated(item)
	}
	response.OK(w, grouped[req.Type])
}
