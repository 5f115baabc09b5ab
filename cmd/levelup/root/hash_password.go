package root

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"levelupsolo.app/server/internal/auth"
)

// newHashPasswordCmd печатает Argon2id-хеш пароля, например для ручного
// сброса пароля пользователю прямо в базе.
func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <пароль>",
		Short: "Сгенерировать Argon2id-хеш пароля",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("нужен ровно один аргумент: пароль")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
