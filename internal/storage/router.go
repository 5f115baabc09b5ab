// Package storage — router.go выбирает хранилище по пользователю.
package storage

// IsDemo сообщает, что id принадлежит демо-сессии.
// Демо-пользователи получают отрицательные id и живут в MemoryStore.
func IsDemo(userID int64) bool { return userID < 0 }

// Router — единственная точка, где различаются демо и обычные пользователи.
type Router struct {
	persistent Store
	demo       *MemoryStore
}

// NewRouter создаёт роутер. persistent может быть nil, если сервер запущен
// без базы (тогда доступен только демо-режим).
func NewRouter(persistent Store, demo *MemoryStore) *Router {
	return &Router{persistent: persistent, demo: demo}
}

// For возвращает хранилище пользователя.
func (r *Router) For(userID int64) Store {
	if IsDemo(userID) || r.persistent == nil {
		return r.demo
	}
	return r.persistent
}

// Persistent возвращает основное хранилище (для джобов). Может быть nil.
func (r *Router) Persistent() Store { return r.persistent }

// Demo возвращает хранилище демо-сессий.
func (r *Router) Demo() *MemoryStore { return r.demo }
