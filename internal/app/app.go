// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, хранилища, сервисы, обработчики,
// HTTP-сервер, бота и планировщик.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"levelupsolo.app/server/internal/auth"
	"levelupsolo.app/server/internal/bot"
	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/config"
	"levelupsolo.app/server/internal/db/postgres"
	"levelupsolo.app/server/internal/events"
	"levelupsolo.app/server/internal/features/activity"
	"levelupsolo.app/server/internal/features/ai"
	"levelupsolo.app/server/internal/features/goals"
	"levelupsolo.app/server/internal/features/pomodoro"
	"levelupsolo.app/server/internal/features/skills"
	"levelupsolo.app/server/internal/features/stats"
	"levelupsolo.app/server/internal/features/tasks"
	"levelupsolo.app/server/internal/features/users"
	"levelupsolo.app/server/internal/jobs"
	"levelupsolo.app/server/internal/middleware"
	"levelupsolo.app/server/internal/progression"
	"levelupsolo.app/server/internal/server"
	"levelupsolo.app/server/internal/storage"
)

// App содержит все компоненты приложения.
type App struct {
	Config    *config.Config
	DB        *pgxpool.Pool // nil — без базы, только демо
	Stores    *storage.Router
	Server    *server.Server
	Bot       *bot.Bot // nil — токен не задан
	Scheduler *jobs.Scheduler

	authLimiter *middleware.RateLimiter
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	loc := common.LoadLocation(cfg.AppTimezone)
	clock := common.RealClock{Location: loc}

	rewardCfg, err := config.LoadRewards(cfg.ProgressionConfig)
	if err != nil {
		return nil, fmt.Errorf("таблицы наград: %w", err)
	}

	a := &App{Config: cfg}

	// === 1. База данных ===
	var persistent storage.Store
	var userRepo users.Repository
	var dbPinger server.Pinger
	if cfg.DatabaseConfigured() {
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ошибка миграций: %w", err)
		}
		a.DB = pool
		persistent = storage.NewPostgresStore(pool)
		userRepo = users.NewRepository(pool)
		dbPinger = pool
	} else {
		log.Warn("База данных не настроена — доступен только демо-режим")
	}

	// === 2. Хранилища ===
	demo := storage.NewMemoryStore(clock)
	a.Stores = storage.NewRouter(persistent, demo)

	// === 3. Сервисы ===
	hub := events.NewHub()
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	rewards := progression.NewResolver(rewardCfg)

	userService := users.NewService(userRepo, demo, tokens, clock, cfg.FeatureDemoEnabled)
	statsService := stats.NewService(a.Stores, clock, cfg.EnergyMaxBalls, hub)
	taskService := tasks.NewService(a.Stores, rewards, clock, cfg.EnergyMaxBalls, hub)
	goalService := goals.NewService(a.Stores, clock, cfg.EnergyMaxBalls, hub)
	skillService := skills.NewService(a.Stores, clock)
	activityService := activity.NewService(a.Stores)
	pomodoroService := pomodoro.NewService(a.Stores, taskService, clock, hub)

	var aiClient ai.ChatCompleter
	if cfg.FeatureAIEnabled {
		aiClient = ai.NewClient(cfg.OpenAIAPIKey)
	}
	if aiClient == nil {
		log.Info("ИИ-ассистент работает в режиме заглушек")
	}
	aiService := ai.NewService(aiClient, cfg.OpenAIModel, taskService)

	// === 4. HTTP ===
	a.authLimiter = middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	a.Server = server.New(server.Options{
		Handlers: server.Handlers{
			Users:    users.NewHandler(userService),
			Stats:    stats.NewHandler(statsService),
			Tasks:    tasks.NewHandler(taskService),
			Goals:    goals.NewHandler(goalService),
			Skills:   skills.NewHandler(skillService),
			Activity: activity.NewHandler(activityService),
			Pomodoro: pomodoro.NewHandler(pomodoroService),
			AI:       ai.NewHandler(aiService),
		},
		Tokens:         tokens,
		Hub:            hub,
		AuthLimiter:    a.authLimiter,
		DB:             dbPinger,
		AllowedOrigins: cfg.WSAllowedOrigins,
	})

	// === 5. Telegram ===
	var notifier jobs.Notifier
	if cfg.BotEnabled() {
		if userRepo == nil {
			log.Warn("Бот-компаньон требует базу данных — не запускаем")
		} else {
			api, err := telego.NewBot(cfg.TelegramBotToken)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
			}
			a.Bot = bot.New(api, cfg, clock, userService, statsService, taskService)
			if cfg.FeatureRemindersEnabled {
				notifier = a.Bot
			}
		}
	}

	// === 6. Планировщик ===
	a.Scheduler = jobs.NewScheduler(loc, a.Stores, clock, cfg.DemoTTL, userService, notifier)

	log.WithFields(log.Fields{
		"db":        a.DB != nil,
		"bot":       a.Bot != nil,
		"ai":        aiClient != nil,
		"demo":      cfg.FeatureDemoEnabled,
		"reminders": notifier != nil,
		"tz":        loc.String(),
	}).Info("Приложение собрано")

	return a, nil
}

// Run запускает планировщик, бота и HTTP-сервер и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}
	defer a.Scheduler.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(ctx, a.Config.HTTPAddr, a.Server.Router())
	})
	if a.Bot != nil {
		g.Go(func() error {
			return a.Bot.Start(ctx)
		})
	}
	return g.Wait()
}

// Close освобождает ресурсы.
func (a *App) Close() {
	if a.authLimiter != nil {
		a.authLimiter.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
