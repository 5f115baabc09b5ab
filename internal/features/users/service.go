// Package users — service.go: регистрация, вход, демо-сессии и привязка
// Telegram-чата к учётной записи.
package users

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"levelupsolo.app/server/internal/auth"
	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/model"
	"levelupsolo.app/server/internal/storage"
)

const (
	// LinkCodeTTL — сколько живёт код привязки Telegram
	LinkCodeTTL   = 10 * time.Minute
	linkCodeLen   = 8
	maxNameLength = 50
)

// Credentials — тело запросов регистрации и входа.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Session — выданный токен.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	UserID    int64       `json:"userId"`
	Demo      bool        `json:"demo"`
	User      *model.User `json:"user,omitempty"`
}

// Me — ответ на GET /api/auth/me.
type Me struct {
	UserID         int64       `json:"userId"`
	Demo           bool        `json:"demo"`
	User           *model.User `json:"user,omitempty"`
	TelegramLinked bool        `json:"telegramLinked"`
}

// LinkCode — одноразовый код для команды /link в боте.
type LinkCode struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service — учётные записи и токены.
type Service struct {
	repo        Repository // nil без базы данных: доступны только демо-сессии
	demo        *storage.MemoryStore
	tokens      *auth.TokenIssuer
	clock       common.Clock
	demoEnabled bool
}

func NewService(repo Repository, demo *storage.MemoryStore, tokens *auth.TokenIssuer, clock common.Clock, demoEnabled bool) *Service {
	return &Service{repo: repo, demo: demo, tokens: tokens, clock: clock, demoEnabled: demoEnabled}
}

// Register создаёт учётную запись и сразу выдаёт токен.
func (s *Service) Register(ctx context.Context, in Credentials) (Session, error) {
	if s.repo == nil {
		return Session{}, common.ErrDemoUnsupported
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return Session{}, err
	}
	if utf8.RuneCountInString(in.Password) < auth.MinPasswordLength {
		return Session{}, common.InvalidInput("密码至少需要6位")
	}
	name := strings.TrimSpace(in.Name)
	if utf8.RuneCountInString(name) > maxNameLength {
		return Session{}, common.InvalidInput("昵称过长")
	}
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return Session{}, err
	}
	user, err := s.repo.Create(ctx, model.User{Email: email, DisplayName: name, PasswordHash: hash})
	if err != nil {
		return Session{}, err
	}

	log.WithField("user_id", user.ID).Info("Новый пользователь зарегистрирован")
	return s.session(user)
}

// Login проверяет пароль. Неизвестный email и неверный пароль
// неразличимы для клиента.
func (s *Service) Login(ctx context.Context, in Credentials) (Session, error) {
	if s.repo == nil {
		return Session{}, common.ErrDemoUnsupported
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	user, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, common.ErrNotFound) {
		return Session{}, common.ErrWrongCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !auth.VerifyPassword(in.Password, user.PasswordHash) {
		return Session{}, common.ErrWrongCredentials
	}
	return s.session(user)
}

// Demo выдаёт токен новой демо-сессии. Её данные живут в памяти.
func (s *Service) Demo(ctx context.Context) (Session, error) {
	if !s.demoEnabled || s.demo == nil {
		return Session{}, common.ErrDemoUnsupported
	}
	id := s.demo.NewDemoUserID()
	token, expires, err := s.tokens.Issue(id, true)
	if err != nil {
		return Session{}, err
	}
	log.WithField("user_id", id).Debug("Демо-сессия создана")
	return Session{Token: token, ExpiresAt: expires, UserID: id, Demo: true}, nil
}

func (s *Service) session(user model.User) (Session, error) {
	token, expires, err := s.tokens.Issue(user.ID, false)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expires, UserID: user.ID, User: &user}, nil
}

// Me возвращает сведения о текущем пользователе.
func (s *Service) Me(ctx context.Context, id auth.Identity) (Me, error) {
	if id.Demo || s.repo == nil {
		return Me{UserID: id.UserID, Demo: id.Demo}, nil
	}
	user, err := s.repo.GetByID(ctx, id.UserID)
	if errors.Is(err, common.ErrNotFound) {
		// Токен пережил удалённого пользователя
		return Me{}, common.ErrUnauthorized
	}
	if err != nil {
		return Me{}, err
	}
	return Me{UserID: user.ID, User: &user, TelegramLinked: user.TelegramChatID != nil}, nil
}

// IssueLinkCode выдаёт код для привязки Telegram. Демо-сессиям недоступно.
func (s *Service) IssueLinkCode(ctx context.Context, id auth.Identity) (LinkCode, error) {
	if id.Demo || s.repo == nil {
		return LinkCode{}, common.ErrDemoUnsupported
	}
	code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:linkCodeLen])
	expires := s.clock.Now().Add(LinkCodeTTL)
	if err := s.repo.SetLinkCode(ctx, id.UserID, code, expires); err != nil {
		return LinkCode{}, err
	}
	return LinkCode{Code: code, ExpiresAt: expires}, nil
}

// LinkTelegram привязывает чат по коду из /link.
func (s *Service) LinkTelegram(ctx context.Context, code string, chatID int64) (model.User, error) {
	if s.repo == nil {
		return model.User{}, common.ErrLinkCodeInvalid
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return model.User{}, common.ErrLinkCodeInvalid
	}
	user, err := s.repo.GetByLinkCode(ctx, code)
	if errors.Is(err, common.ErrNotFound) {
		return model.User{}, common.ErrLinkCodeInvalid
	}
	if err != nil {
		return model.User{}, err
	}
	if user.TelegramLinkExpiry == nil || s.clock.Now().After(*user.TelegramLinkExpiry) {
		return model.User{}, common.ErrLinkCodeInvalid
	}
	if err := s.repo.LinkTelegram(ctx, user.ID, chatID); err != nil {
		return model.User{}, err
	}

	user.TelegramChatID = &chatID
	user.TelegramLinkCode = nil
	user.TelegramLinkExpiry = nil
	log.WithFields(log.Fields{
		"user_id": user.ID,
		"chat_id": chatID,
	}).Info("Telegram привязан")
	return user, nil
}

// UserByChat возвращает пользователя, к которому привязан чат.
func (s *Service) UserByChat(ctx context.Context, chatID int64) (model.User, error) {
	if s.repo == nil {
		return model.User{}, common.ErrNotFound
	}
	return s.repo.GetByChatID(ctx, chatID)
}

// LinkedUsers — пользователи с привязанным Telegram (для напоминаний).
func (s *Service) LinkedUsers(ctx context.Context) ([]model.User, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.ListLinked(ctx)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", common.InvalidInput("邮箱格式不正确")
	}
	return email, nil
}
