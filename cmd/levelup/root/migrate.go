package root

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"levelupsolo.app/server/internal/db/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции базы данных",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgres.RunMigrations(cmd.Context(), pool); err != nil {
				return err
			}
			log.Info("Миграции применены")
			return nil
		},
	}
}
