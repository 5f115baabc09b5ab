// Package common — http.go: JSON-ответы и отображение ошибок на HTTP-статусы.
// Все ошибки API имеют вид {"message": "..."}.
package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"
)

// MaxBodyBytes — предел размера тела запроса.
const MaxBodyBytes = 1 << 20

// ErrorResponse — тело ответа об ошибке.
type ErrorResponse struct {
	Message string `json:"message"`
}

// WriteJSON пишет v как JSON с заданным статусом.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Не удалось записать JSON-ответ")
	}
}

// ErrorStatus отображает ошибку на HTTP-статус.
func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrInsufficientEnergy),
		errors.Is(err, ErrDuplicateCompletion),
		errors.Is(err, ErrInvalidUncomplete),
		errors.Is(err, ErrTaskAlreadyCompleted),
		errors.Is(err, ErrGoalAlreadyCompleted),
		errors.Is(err, ErrLinkCodeInvalid),
		errors.Is(err, ErrDemoUnsupported),
		IsInvalidInput(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrWrongCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrTaskNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// WriteError отвечает ошибкой. Внутренние ошибки логируются целиком,
// а пользователь получает только общий текст.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).WithError(err).Error("Ошибка обработки запроса")
	}
	WriteJSON(w, status, ErrorResponse{Message: UserMessage(err)})
}

// DecodeJSON читает тело запроса в v. Ошибки разбора — ErrInvalidInput.
// Пустое тело допустимо и оставляет v без изменений.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return InvalidInput(fmt.Sprintf("请求格式错误: %v", err))
	}
	return nil
}

// PathID разбирает числовой параметр пути {name}.
func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, InvalidInput("无效的ID")
	}
	return id, nil
}
