// Package activity — журнал активности пользователя (только чтение).
package activity

import (
	"context"
	"net/http"
	"strconv"

	"levelupsolo.app/server/internal/auth"
	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/model"
	"levelupsolo.app/server/internal/storage"
)

// MaxLimit — сколько записей можно запросить за раз.
const MaxLimit = 200

type Service struct {
	stores *storage.Router
}

func NewService(stores *storage.Router) *Service {
	return &Service{stores: stores}
}

// List возвращает последние записи журнала, новые первыми.
// limit <= 0 означает значение по умолчанию.
func (s *Service) List(ctx context.Context, userID int64, limit int) ([]model.ActivityLog, error) {
	if limit <= 0 {
		limit = storage.DefaultActivityLimit
	}
	limit = min(limit, MaxLimit)
	return s.stores.For(userID).ListActivity(ctx, userID, limit)
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List — GET /api/data?type=activity&limit=N
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			common.WriteError(w, r, common.InvalidInput("limit 参数无效"))
			return
		}
		limit = v
	}
	list, err := h.service.List(r.Context(), auth.UserID(r.Context()), limit)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, list)
}
