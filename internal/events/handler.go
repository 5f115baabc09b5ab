package events

import (
	"net/http"

	ws "github.com/coder/websocket"
	log "github.com/sirupsen/logrus"

	"levelupsolo.app/server/internal/auth"
	"levelupsolo.app/server/internal/common"
)

// Handler поднимает websocket для аутентифицированного пользователя.
// Ожидает Identity в контексте (middleware.RequireAuth).
func Handler(hub *Hub, allowedOrigins []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.FromContext(r.Context())
		if !ok {
			common.WriteError(w, r, common.ErrUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns:     allowedOrigins,
			InsecureSkipVerify: len(allowedOrigins) == 0,
		})
		if err != nil {
			log.WithError(err).WithField("user_id", id.UserID).Warn("websocket: accept")
			return
		}
		defer conn.CloseNow()

		log.WithField("user_id", id.UserID).Debug("websocket подключён")
		NewClient(hub, conn, id.UserID).Run(r.Context())
	}
}
