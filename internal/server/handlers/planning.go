package handlers

import (
	"net/http"
	"time"

	"github.com/atelierboard/atelierboard/internal/server/response"
	"github.com/atelierboard/atelierboard/internal/store"
	"github.com/atelierboard/atelierboard/pkg/models"
)

// HandleListPlanning handles GET /planning.
func (h *Handlers) HandleListPlanning(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListPlanning(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, items)
}

type createPlanningRequest struct {
	Priority    models.Priority       `json:"priority"`
	ClientName  string                `json:"clientName"`
	Quantity    int                   `json:"quantity"`
	Designation string                `json:"designation"`
	Note        string                `json:"note"`
	UnitPrice   float64               `json:"unitPrice"`
	Deadline    *time.Time            `json:"deadline"`
	Status      models.PlanningStatus `json:"status"`
	Responsible string                `json:"responsible"`
}

// HandleCreatePlanningItem handles POST /planning.
func (h *Handlers) HandleCreatePlanningItem(w http.ResponseWriter, r *http.Request) {
	var req createPlanningRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body", err.Error())
		return
	}

	item, err := h.store.CreatePlanningItem(r.Context(), store.PlanningDraft{
		Priority:    req.Priority,
		ClientName:  req.ClientName,
		Quantity:    req.Quantity,
		Designation: req.Designation,
		Note:        req.Note,
		UnitPrice:   req.UnitPrice,
		Deadline:    req.Deadline,
		Status:      req.Status,
		Responsible: req.Responsible,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.broadcast.PlanningCreated(item)
	response.Created(w, item)
}

type updatePlanningRequest struct {
	Priority      *models.Priority       `json:"priority"`
	ClientName    *string                `json:"clientName"`
	Quantity      *int                   `json:"quantity"`
	Designation   *string                `json:"designation"`
	Note          *string                `json:"note"`
	UnitPrice     *float64               `json:"unitPrice"`
	Deadline      *time.Time             `json:"deadline"`
	ClearDeadline bool                   `json:"clearDeadline"`
	Status        *models.PlanningStatus `json:"status"`
	Responsible   *string                `json:"responsible"`
	Position      *int                   `json:"position"`
}

// HandleUpdatePlanningItem handles PATCH /planning/{id}.
func (h *Handlers) HandleUpdatePlanningItem(w http.ResponseWriter, r *http.Request, id string) {
	var req updatePlanningRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body", err.Error())
		return
	}

	item, err := h.store.UpdatePlanningItem(r.Context(), id, store.PlanningPatch{
		Priority:      req.Priority,
		ClientName:    req.ClientName,
		Quantity:      req.Quantity,
		Designation:   req.Designation,
		Note:          req.Note,
		UnitPrice:     req.UnitPrice,
		Deadline:      req.Deadline,
		ClearDeadline: req.ClearDeadline,
		Status:        req.Status,
		Responsible:   req.Responsible,
		Position:      req.Position,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.broadcast.PlanningUpdated(item)
	response.OK(w, item)
}

// HandleDeletePlanningItem handles DELETE /planning/{id}.
func (h *Handlers) HandleDeletePlanningItem(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.DeletePlanningItem(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	h.broadcast.PlanningDeleted(id)
	response.OK(w, map[string]string{"id": id})
}

type reorderPlanningRequest struct {
	IDs []string `json:"ids"`
}

// HandleReorderPlanning handles POST /planning/reorder.
// IDs give the full display order of the planning list after a drop.
func (h *Handlers) HandleReorderPlanning(w http.ResponseWriter, r *http.Request) {
	var req reorderPlanningRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body", err.Error())
		return
	}
	if len(req.IDs) == 0 {
		response.BadRequest(w, "ids must not be empty", "")
		return
	}

	if err := h.store.ReorderPlanning(r.Context(), req.IDs); err != nil {
		h.writeError(w, err)
		return
	}

	items, err := h.store.ListPlanning(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	for _, item := range items {
		h.broadcast.PlanningUpdated(item)
	}
	response.OK(w, items)
}
