package goals

import (
	"net/http"

	"levelupsolo.app/server/internal/auth"
	"levelupsolo.app/server/internal/common"
)

// Handler — HTTP-обработчики целей.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List — GET /api/data?type=goals
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, list)
}

// Create — POST /api/crud?resource=goals
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, r, err)
		return
	}
	goal, err := h.service.Create(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, goal)
}

// Update — PATCH /api/goals/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := common.PathID(r, "id")
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	var in UpdateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, r, err)
		return
	}
	goal, err := h.service.Update(r.Context(), auth.UserID(r.Context()), id, in)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, goal)
}

// Delete — DELETE /api/goals/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := common.PathID(r, "id")
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), auth.UserID(r.Context()), id); err != nil {
		common.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Complete — POST /api/goals/{id}/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := common.PathID(r, "id")
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	res, err := h.service.Complete(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, res)
}
