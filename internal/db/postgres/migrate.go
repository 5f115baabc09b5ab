// Package postgres — migrate.go применяет миграции схемы через goose.
// SQL-файлы встроены в бинарник, отдельная папка на сервере не нужна.
package postgres

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	log "github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrations embed.FS

// RunMigrations поднимает схему до последней версии.
// goose работает через database/sql, поэтому пул оборачивается в *sql.DB
// на время миграции.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{})

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("версия схемы: %w", err)
	}
	log.WithField("version", version).Info("Миграции применены")
	return nil
}

// gooseLogger направляет вывод goose в logrus.
type gooseLogger struct{}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	log.WithField("component", "goose").Fatalf(format, v...)
}

func (gooseLogger) Printf(format string, v ...interface{}) {
	log.WithField("component", "goose").Infof(format, v...)
}
