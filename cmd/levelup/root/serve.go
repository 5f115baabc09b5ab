package root

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"levelupsolo.app/server/internal/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP API, бота и планировщик",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info("=== Сервер запускается ===")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// Отмена по SIGINT/SIGTERM (Ctrl+C, docker stop)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			log.Info("=== Сервер готов к работе ===")
			if err := application.Run(ctx); err != nil {
				return err
			}
			log.Info("=== Сервер остановлен ===")
			return nil
		},
	}
}
