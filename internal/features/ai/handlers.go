package ai

import (
	"net/http"

	"levelupsolo.app/server/internal/auth"
	"levelupsolo.app/server/internal/common"
)

// request — тело POST /api/ai. message для чата, input для разбора.
type request struct {
	Message string `json:"message"`
	Input   string `json:"input"`
}

func (r request) text() string {
	if r.Input != "" {
		return r.Input
	}
	return r.Message
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Handle — POST /api/ai?action=chat|suggestions|parse-input|create-task
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	var in request
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, r, err)
		return
	}
	ctx := r.Context()

	var (
		out    any
		err    error
		status = http.StatusOK
	)
	switch action := r.URL.Query().Get("action"); action {
	case "chat":
		out, err = h.service.Chat(ctx, in.text())
	case "suggestions":
		out, err = h.service.Suggestions(ctx, auth.UserID(ctx))
	case "parse-input":
		out, err = h.service.ParseInput(ctx, in.text())
	case "create-task":
		out, err = h.service.CreateTask(ctx, auth.UserID(ctx), in.text())
		status = http.StatusCreated
	default:
		err = common.InvalidInput("未知的操作: " + action)
	}
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, status, out)
}
