// Package users — repository.go выполняет операции с таблицей users.
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/db/postgres"
	"levelupsolo.app/server/internal/model"
)

// Repository — хранение учётных записей. Учётные записи есть только
// в Postgres, у демо-сессий их нет.
type Repository interface {
	Create(ctx context.Context, u model.User) (model.User, error)
	GetByID(ctx context.Context, id int64) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	SetLinkCode(ctx context.Context, userID int64, code string, expiresAt time.Time) error
	GetByLinkCode(ctx context.Context, code string) (model.User, error)
	// LinkTelegram привязывает чат к пользователю и гасит код привязки.
	// Если чат был привязан к другому пользователю — привязка переносится.
	LinkTelegram(ctx context.Context, userID, chatID int64) error
	GetByChatID(ctx context.Context, chatID int64) (model.User, error)
	// ListLinked возвращает пользователей с привязанным Telegram.
	ListLinked(ctx context.Context) ([]model.User, error)
}

const userColumns = `id, email, display_name, password_hash, telegram_chat_id,
	telegram_link_code, telegram_link_expires_at, created_at, updated_at`

// PgRepository — реализация Repository на pgx.
type PgRepository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий пользователей.
func NewRepository(db *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: db}
}

func (r *PgRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	query := `
		INSERT INTO users (email, display_name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns
	rows, _ := r.db.Query(ctx, query, u.Email, u.DisplayName, u.PasswordHash)
	created, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[model.User])
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return model.User{}, common.ErrEmailTaken
		}
		return model.User{}, fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id int64) (model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PgRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PgRepository) GetByLinkCode(ctx context.Context, code string) (model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_link_code = $1`, code)
}

func (r *PgRepository) GetByChatID(ctx context.Context, chatID int64) (model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_chat_id = $1`, chatID)
}

func (r *PgRepository) getOne(ctx context.Context, query string, arg any) (model.User, error) {
	rows, _ := r.db.Query(ctx, query, arg)
	u, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[model.User])
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, common.ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("ошибка чтения пользователя: %w", err)
	}
	return u, nil
}

func (r *PgRepository) SetLinkCode(ctx context.Context, userID int64, code string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET telegram_link_code = $2, telegram_link_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, userID, code, expiresAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения кода привязки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PgRepository) LinkTelegram(ctx context.Context, userID, chatID int64) error {
	return postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE users SET telegram_chat_id = NULL, updated_at = NOW() WHERE telegram_chat_id = $1 AND id <> $2`,
			chatID, userID,
		); err != nil {
			return fmt.Errorf("ошибка отвязки чата: %w", err)
		}
		tag, err := tx.Exec(ctx, `
			UPDATE users
			SET telegram_chat_id = $2, telegram_link_code = NULL,
			    telegram_link_expires_at = NULL, updated_at = NOW()
			WHERE id = $1
		`, userID, chatID)
		if err != nil {
			return fmt.Errorf("ошибка привязки чата: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return common.ErrNotFound
		}
		return nil
	})
}

func (r *PgRepository) ListLinked(ctx context.Context) ([]model.User, error) {
	rows, _ := r.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_chat_id IS NOT NULL ORDER BY id`)
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.User])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения привязанных пользователей: %w", err)
	}
	return list, nil
}
