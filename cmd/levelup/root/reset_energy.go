package root

import (
	"github.com/spf13/cobra"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/jobs"
	"levelupsolo.app/server/internal/storage"
)

// newResetEnergyCmd выполняет ежедневный сброс вручную (например, если
// сервер лежал в полночь). Повторный запуск в те же сутки ничего не меняет.
func newResetEnergyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-energy",
		Short: "Выполнить ежедневный сброс энергии и ежедневных задач",
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

			loc := common.LoadLocation(cfg.AppTimezone)
			stores := storage.NewRouter(storage.NewPostgresStore(pool), nil)
			sched := jobs.NewScheduler(loc, stores, common.RealClock{Location: loc}, 0, nil, nil)
			return sched.DailyReset(cmd.Context())
		},
	}
}
