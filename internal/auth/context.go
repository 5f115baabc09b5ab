// Package auth — context.go хранит данные аутентификации в контексте запроса.
package auth

import "context"

type contextKey struct{}

// Identity — кто выполняет запрос.
type Identity struct {
	UserID int64
	Demo   bool
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

func UserID(ctx context.Context) int64 {
	id, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return id.UserID
}

func IsDemo(ctx context.Context) bool {
	id, ok := FromContext(ctx)
	return ok && id.Demo
}
