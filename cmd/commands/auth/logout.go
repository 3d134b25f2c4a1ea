package auth

import (
	"errors"
	"fmt"

	"nathanbeddoewebdev/vmstate/internal/services/auth"
	"nathanbeddoewebdev/vmstate/internal/util"

	"github.com/spf13/cobra"
)

func LogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout <provider>",
		Short: "Remove a stored password from the keychain",
		Long: `Remove the stored password or API token for a provider and username.

Example:
  vmstate auth logout bytemark --username alice`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := util.NormalizeKey(args[0])
			username, err := resolveUsername(cmd)
			if err != nil {
				return err
			}

			err = newStore().DeletePassword(provider, username)
			switch {
			case errors.Is(err, auth.ErrPasswordNotFound):
				fmt.Fprintf(cmd.OutOrStdout(), "No stored password for %s on %s\n", username, provider)
				return nil
			case err != nil:
				return fmt.Errorf("failed to remove password: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed password for %s on %s\n", username, provider)
			return nil
		},
	}
}
