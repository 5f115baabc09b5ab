package middleware

import (
	"net/http"
	"strings"

	"levelupsolo.app/server/internal/auth"
	"levelupsolo.app/server/internal/common"
)

// TokenParser проверяет токен доступа.
type TokenParser interface {
	Parse(token string) (auth.Claims, error)
}

// RequireAuth проверяет Bearer-токен и кладёт Identity в контекст.
// Для websocket токен можно передать параметром ?token=, потому что
// браузерный WebSocket не умеет в заголовки.
func RequireAuth(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				common.WriteError(w, r, common.ErrUnauthorized)
				return
			}

			claims, err := tokens.Parse(raw)
			if err != nil {
				common.WriteError(w, r, err)
				return
			}

			ctx := auth.WithIdentity(r.Context(), auth.Identity{UserID: claims.UserID, Demo: claims.Demo})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return r.URL.Query().Get("token")
}
