// Package stats — handlers.go: HTTP-обработчики статистики.
package stats

import (
	"net/http"

	"levelupsolo.app/server/internal/auth"
	"levelupsolo.app/server/internal/common"
)

// Handler обрабатывает запросы статистики.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Get — GET /api/data?type=stats
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Get(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, stats)
}

// RestoreEnergy — POST /api/stats/restore-energy
func (h *Handler) RestoreEnergy(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.RestoreEnergy(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, stats)
}
