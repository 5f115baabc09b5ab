// Package bot — Telegram-компаньон Level Up Solo.
// bot.go: запуск long polling, ограничение параллелизма и отправка сообщений.
package bot

import (
	"context"
	"strconv"
	"unicode/utf8"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"levelupsolo.app/server/internal/bot/filters"
	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/config"
	"levelupsolo.app/server/internal/features/stats"
	"levelupsolo.app/server/internal/features/tasks"
	"levelupsolo.app/server/internal/middleware"
	"levelupsolo.app/server/internal/model"
)

// Sender — отправка сообщений. *telego.Bot подходит как есть.
type Sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// Accounts — связь чатов с учётными записями (users.Service).
type Accounts interface {
	filters.AccountLookup
	LinkTelegram(ctx context.Context, code string, chatID int64) (model.User, error)
}

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api    *telego.Bot
	sender Sender
	cfg    *config.Config
	clock  common.Clock

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	accounts Accounts
	stats    *stats.Service
	tasks    *tasks.Service

	parser *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт бота со всеми зависимостями.
func New(api *telego.Bot, cfg *config.Config, clock common.Clock, accounts Accounts, statsService *stats.Service, taskService *tasks.Service) *Bot {
	b := newBot(api, cfg, clock, accounts, statsService, taskService)
	b.api = api
	return b
}

func newBot(sender Sender, cfg *config.Config, clock common.Clock, accounts Accounts, statsService *stats.Service, taskService *tasks.Service) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}
	return &Bot{
		sender:      sender,
		cfg:         cfg,
		clock:       clock,
		chatFilter:  filters.NewChatFilter(accounts),
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		accounts:    accounts,
		stats:       statsService,
		tasks:       taskService,
		parser:      NewCommandParser(),
		inflight:    make(chan struct{}, maxInFlight),
	}
}

// Start запускает long polling и блокируется до отмены ctx.
func (b *Bot) Start(ctx context.Context) error {
	defer b.rateLimiter.Close()

	updates, err := b.api.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: b.cfg.BotUpdateTimeoutSeconds,
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"max_inflight": cap(b.inflight),
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			return nil

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return nil
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd telego.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update telego.Update) {
	defer middleware.RecoverFromPanic()

	if update.Message == nil || update.Message.Text == "" {
		return
	}
	b.handleMessage(ctx, update.Message)
}

func (b *Bot) handleMessage(ctx context.Context, message *telego.Message) {
	logMessage(message)

	access, ok := b.chatFilter.CheckAccess(ctx, message)
	if !ok {
		return
	}

	chatID := message.Chat.ID
	if !b.rateLimiter.Allow(strconv.FormatInt(chatID, 10)) {
		log.WithField("chat_id", chatID).Debug("rate limited")
		return
	}

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		return
	}
	log.WithFields(log.Fields{
		"cmd":    cmd,
		"args":   args,
		"linked": access.Linked,
	}).Debug("parsed command")

	b.routeCommand(ctx, chatID, access, cmd, args)
}

// sendMessage — утилита для отправки сообщений.
func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) {
	if _, err := b.sender.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// SendMessageToChat отправляет сообщение в чат (для напоминаний).
func (b *Bot) SendMessageToChat(ctx context.Context, chatID int64, text string) error {
	_, err := b.sender.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	if err != nil {
		log.WithError(err).WithField("chat_id", chatID).Debug("Не удалось отправить сообщение")
		return err
	}
	log.WithField("chat_id", chatID).Debug("message sent")
	return nil
}

// logMessage логирует входящее сообщение (текст — первые 50 символов).
func logMessage(message *telego.Message) {
	text := message.Text
	if utf8.RuneCountInString(text) > 50 {
		text = string([]rune(text)[:50]) + "..."
	}
	fields := log.Fields{
		"chat_id": message.Chat.ID,
		"text":    text,
	}
	if message.From != nil {
		fields["user_id"] = message.From.ID
		fields["username"] = message.From.Username
	}
	log.WithFields(fields).Debug("Входящее сообщение")
}
