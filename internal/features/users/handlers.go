package users

import (
	"net/http"

	"levelupsolo.app/server/internal/auth"
	"levelupsolo.app/server/internal/common"
)

// Handler — HTTP-обработчики аутентификации и привязки Telegram.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Auth — POST /api/auth?action=register|login|demo
func (h *Handler) Auth(w http.ResponseWriter, r *http.Request) {
	var (
		sess Session
		err  error
	)
	switch action := r.URL.Query().Get("action"); action {
	case "register", "login":
		var in Credentials
		if err := common.DecodeJSON(r, &in); err != nil {
			common.WriteError(w, r, err)
			return
		}
		if action == "register" {
			sess, err = h.service.Register(r.Context(), in)
		} else {
			sess, err = h.service.Login(r.Context(), in)
		}
	case "demo":
		sess, err = h.service.Demo(r.Context())
	default:
		err = common.InvalidInput("未知的操作: " + action)
	}
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, sess)
}

// Me — GET /api/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		common.WriteError(w, r, common.ErrUnauthorized)
		return
	}
	me, err := h.service.Me(r.Context(), id)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, me)
}

// LinkCode — POST /api/telegram/link
func (h *Handler) LinkCode(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		common.WriteError(w, r, common.ErrUnauthorized)
		return
	}
	code, err := h.service.IssueLinkCode(r.Context(), id)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, code)
}
