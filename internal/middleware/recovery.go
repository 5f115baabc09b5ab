package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"levelupsolo.app/server/internal/common"
)

// RecoverFromPanic логирует панику. Вызывается через defer в горутинах
// (обработчики бота, джобы).
func RecoverFromPanic() {
	if r := recover(); r != nil {
		logPanic(r)
	}
}

// Recoverer превращает панику в обработчике в ответ 500.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logPanic(rec)
				common.WriteJSON(w, http.StatusInternalServerError, common.ErrorResponse{Message: common.UserMessage(nil)})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func logPanic(r any) {
	log.WithFields(log.Fields{
		"component": "panic_recovery",
		"panic":     fmt.Sprintf("%v", r),
		"stack":     string(debug.Stack()),
	}).Error("ПАНИКА в обработчике — восстановлено")
}
