package pomodoro

import (
	"net/http"

	"levelupsolo.app/server/internal/auth"
	"levelupsolo.app/server/internal/common"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Overview — GET /api/data?type=pomodoro
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Overview(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, out)
}

// Start — POST /api/pomodoro/start
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var in StartInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, r, err)
		return
	}
	session, err := h.service.Start(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, session)
}

// Complete — POST /api/pomodoro/{id}/complete
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

// Cancel — POST /api/pomodoro/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := common.PathID(r, "id")
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	session, err := h.service.Cancel(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, session)
}
