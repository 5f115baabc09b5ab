// Package server собирает HTTP API: маршруты, цепочку middleware и
// диспетчеры /api/data и /api/crud.
package server

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/events"
	"levelupsolo.app/server/internal/features/activity"
	"levelupsolo.app/server/internal/features/ai"
	"levelupsolo.app/server/internal/features/goals"
	"levelupsolo.app/server/internal/features/pomodoro"
	"levelupsolo.app/server/internal/features/skills"
	"levelupsolo.app/server/internal/features/stats"
	"levelupsolo.app/server/internal/features/tasks"
	"levelupsolo.app/server/internal/features/users"
	"levelupsolo.app/server/internal/middleware"
)

// Pinger проверяет доступность базы данных (*pgxpool.Pool подходит).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers — обработчики всех фич.
type Handlers struct {
	Users    *users.Handler
	Stats    *stats.Handler
	Tasks    *tasks.Handler
	Goals    *goals.Handler
	Skills   *skills.Handler
	Activity *activity.Handler
	Pomodoro *pomodoro.Handler
	AI       *ai.Handler
}

// Server — HTTP API.
type Server struct {
	handlers       Handlers
	tokens         middleware.TokenParser
	hub            *events.Hub
	authLimiter    *middleware.RateLimiter
	db             Pinger // nil — работаем без базы (только демо)
	allowedOrigins []string
}

// Options — зависимости сервера.
type Options struct {
	Handlers       Handlers
	Tokens         middleware.TokenParser
	Hub            *events.Hub
	AuthLimiter    *middleware.RateLimiter
	DB             Pinger
	AllowedOrigins []string
}

func New(opts Options) *Server {
	return &Server{
		handlers:       opts.Handlers,
		tokens:         opts.Tokens,
		hub:            opts.Hub,
		authLimiter:    opts.AuthLimiter,
		db:             opts.DB,
		allowedOrigins: opts.AllowedOrigins,
	}
}

// Router возвращает корневой обработчик со всей цепочкой middleware.
func (s *Server) Router() http.Handler {
	outer := http.NewServeMux()

	// Публичные маршруты
	outer.HandleFunc("GET /health", s.health)
	authHandler := http.Handler(http.HandlerFunc(s.handlers.Users.Auth))
	if s.authLimiter != nil {
		authHandler = middleware.RateLimit(s.authLimiter, middleware.RealIP)(authHandler)
	}
	outer.Handle("POST /api/auth", authHandler)

	// Защищённые маршруты
	protected := http.NewServeMux()
	s.registerProtectedRoutes(protected)
	outer.Handle("/api/", middleware.RequireAuth(s.tokens)(protected))

	return middleware.Recoverer(middleware.RequestLogger(outer))
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	h := s.handlers

	mux.HandleFunc("GET /api/auth/me", h.Users.Me)
	mux.HandleFunc("POST /api/telegram/link", h.Users.LinkCode)

	mux.HandleFunc("GET /api/data", s.data)
	mux.HandleFunc("POST /api/crud", s.crud)

	mux.HandleFunc("PATCH /api/tasks/{id}", h.Tasks.Update)
	mux.HandleFunc("DELETE /api/tasks/{id}", h.Tasks.Delete)
	mux.HandleFunc("POST /api/tasks/{id}/complete", h.Tasks.Complete)
	mux.HandleFunc("POST /api/tasks/{id}/uncomplete", h.Tasks.Uncomplete)

	mux.HandleFunc("POST /api/stats/restore-energy", h.Stats.RestoreEnergy)

	mux.HandleFunc("PATCH /api/goals/{id}", h.Goals.Update)
	mux.HandleFunc("DELETE /api/goals/{id}", h.Goals.Delete)
	mux.HandleFunc("POST /api/goals/{id}/complete", h.Goals.Complete)

	mux.HandleFunc("POST /api/ai", h.AI.Handle)

	mux.HandleFunc("POST /api/pomodoro/start", h.Pomodoro.Start)
	mux.HandleFunc("POST /api/pomodoro/{id}/complete", h.Pomodoro.Complete)
	mux.HandleFunc("POST /api/pomodoro/{id}/cancel", h.Pomodoro.Cancel)

	if s.hub != nil {
		mux.HandleFunc("GET /api/ws", events.Handler(s.hub, s.allowedOrigins))
	}
}

// data — GET /api/data?type=tasks|stats|skills|goals|activity|pomodoro
func (s *Server) data(w http.ResponseWriter, r *http.Request) {
	h := s.handlers
	switch kind := r.URL.Query().Get("type"); kind {
	case "tasks":
		h.Tasks.List(w, r)
	case "stats":
		h.Stats.Get(w, r)
	case "skills":
		h.Skills.List(w, r)
	case "goals":
		h.Goals.List(w, r)
	case "activity":
		h.Activity.List(w, r)
	case "pomodoro":
		h.Pomodoro.Overview(w, r)
	default:
		common.WriteError(w, r, common.InvalidInput("未知的数据类型: "+kind))
	}
}

// crud — POST /api/crud?resource=tasks|goals|skills
func (s *Server) crud(w http.ResponseWriter, r *http.Request) {
	h := s.handlers
	switch resource := r.URL.Query().Get("resource"); resource {
	case "tasks":
		h.Tasks.Create(w, r)
	case "goals":
		h.Goals.Create(w, r)
	case "skills":
		h.Skills.Create(w, r)
	default:
		common.WriteError(w, r, common.InvalidInput("未知的资源: "+resource))
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// health — GET /health. 503, если база не отвечает.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "disabled"}
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			log.WithError(err).Warn("health: база данных недоступна")
			resp.Status, resp.Database = "degraded", "unavailable"
			common.WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Database = "ok"
	}
	common.WriteJSON(w, http.StatusOK, resp)
}

// ListenAndServe запускает сервер и останавливает его по отмене ctx.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("HTTP-сервер запущен")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("Останавливаем HTTP-сервер...")
	return srv.Shutdown(shutdownCtx)
}
