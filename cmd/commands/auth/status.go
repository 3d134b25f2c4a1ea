package auth

import (
	"errors"
	"fmt"

	"nathanbeddoewebdev/vmstate/internal/providers"
	"nathanbeddoewebdev/vmstate/internal/services/auth"
	"nathanbeddoewebdev/vmstate/internal/tui/styles"

	"github.com/spf13/cobra"
)

func StatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which providers have a stored password",
		Long: `Show, for every registered provider, whether a password is stored
for the username.

Example:
  vmstate auth status --username alice`,
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := resolveUsername(cmd)
			if err != nil {
				return err
			}

			names := providers.List()
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No providers registered.")
				return nil
			}

			store := newStore()
			for _, provider := range names {
				_, err := store.GetPassword(provider, username)
				switch {
				case err == nil:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", provider, styles.SuccessText.Render("logged in"))
				case errors.Is(err, auth.ErrPasswordNotFound):
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", provider, styles.MutedText.Render("not logged in"))
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", provider, styles.ErrorText.Render(fmt.Sprintf("error (%v)", err)))
				}
			}
			return nil
		},
		SilenceUsage: true,
	}

	return cmd
}
