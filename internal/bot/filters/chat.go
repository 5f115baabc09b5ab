// Package filters решает, кому бот отвечает.
// Бот работает только в личных чатах. Привязанный чат получает доступ
// к прогрессу своего пользователя, непривязанный — только к /start, /help, /link.
package filters

import (
	"context"
	"errors"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/model"
)

// AccountLookup находит пользователя по привязанному чату.
type AccountLookup interface {
	UserByChat(ctx context.Context, chatID int64) (model.User, error)
}

// Access — результат проверки чата.
type Access struct {
	UserID int64 // 0, если чат не привязан
	Linked bool
}

type ChatFilter struct {
	accounts AccountLookup
}

func NewChatFilter(accounts AccountLookup) *ChatFilter {
	return &ChatFilter{accounts: accounts}
}

// CheckAccess возвращает false, если сообщение надо проигнорировать.
func (f *ChatFilter) CheckAccess(ctx context.Context, message *telego.Message) (Access, bool) {
	if message == nil {
		return Access{}, false
	}
	if message.From == nil {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Warn("nil message.From (service/channel message?)")
		return Access{}, false
	}

	logger := log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
		"user_id":   message.From.ID,
	})

	// Группы и каналы игнорируем
	if message.Chat.Type != telego.ChatTypePrivate {
		logger.Debug("deny: not private")
		return Access{}, false
	}
	if f.accounts == nil {
		logger.Error("accounts is nil")
		return Access{}, false
	}

	user, err := f.accounts.UserByChat(ctx, message.Chat.ID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		logger.Debug("allow: private (not linked)")
		return Access{}, true
	case err != nil:
		logger.WithError(err).Error("link check failed (db)")
		return Access{}, false
	}

	logger.WithField("account_id", user.ID).Debug("allow: private (linked)")
	return Access{UserID: user.ID, Linked: true}, true
}
