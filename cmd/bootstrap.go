package main

import (
	"errors"

	"sims/internal/service"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newBootstrapAdminCommand() *cobra.Command {
	var input service.BootstrapAdminInput
	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create or promote the first Super Admin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input.Username == "" || input.Email == "" {
				return errors.New("--username and --email are required")
			}
			app, err := newApplication(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			user, err := app.roles.BootstrapSuperAdmin(cmd.Context(), input, app.hasher, app.policy)
			if err != nil {
				var validationErr *service.ValidationError
				if errors.As(err, &validationErr) && len(validationErr.Details) > 0 {
					app.logger.WithField("details", validationErr.Details).Error("password rejected")
				}
				return err
			}
			app.logger.WithFields(logrus.Fields{
				"user_id":  user.ID,
				"username": user.Username,
			}).Info("super admin ready")
			return nil
		},
	}
	cmd.Flags().StringVar(&input.Username, "username", "", "account username")
	cmd.Flags().StringVar(&input.Email, "email", "", "account email")
	cmd.Flags().StringVar(&input.Password, "password", "", "password for a new account")
	return cmd
}
