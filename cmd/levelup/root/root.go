// Package root — команды CLI levelup.
package root

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"levelupsolo.app/server/internal/config"
	"levelupsolo.app/server/internal/db/postgres"
)

const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "levelup",
	Short:         "Level Up Solo — сервер прогрессии",
	Long:          "Level Up Solo: HTTP API, websocket-события, Telegram-компаньон и фоновые задачи.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	rootCmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newResetEnergyCmd(),
		newHashPasswordCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("Команда завершилась с ошибкой")
		os.Exit(1)
	}
}

// loadConfig читает конфиг и применяет уровень логирования.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if level, err := log.ParseLevel(cfg.AppLogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("level", cfg.AppLogLevel).Warn("Неизвестный APP_LOG_LEVEL, оставляем debug")
	}
	return cfg, nil
}

// openDB подключается к базе. Без настроенной базы команды обслуживания не работают.
func openDB(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if !cfg.DatabaseConfigured() {
		return nil, fmt.Errorf("база данных не настроена (DATABASE_URL или DB_*)")
	}
	return postgres.NewPool(ctx, cfg)
}
