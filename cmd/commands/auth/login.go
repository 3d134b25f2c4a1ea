package auth

import (
	"fmt"
	"os"
	"strings"

	"nathanbeddoewebdev/vmstate/internal/domain"
	"nathanbeddoewebdev/vmstate/internal/providers"
	"nathanbeddoewebdev/vmstate/internal/util"

	"github.com/spf13/cobra"
)

func LoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <provider>",
		Short: "Store a password or API token for a provider",
		Long: `Store a password or API token for a provider using the local keychain.

With --verify the credentials are checked against the provider before
they are saved.

Examples:
  vmstate auth login bytemark --username alice
  vmstate auth login hetzner --verify`,
		Args:         cobra.ExactArgs(1),
		RunE:         runLogin,
		SilenceUsage: true,
	}

	cmd.Flags().String("password", "", "Password or API token (optional, overrides prompt)")
	cmd.Flags().String("otp", "", "One-time code, used only with --verify")
	cmd.Flags().Bool("verify", false, "Authenticate against the provider before saving")

	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	provider := util.NormalizeKey(args[0])
	if provider == "" {
		return fmt.Errorf("provider is required")
	}
	if _, err := providers.DefaultsFor(provider); err != nil {
		return err
	}

	username, err := resolveUsername(cmd)
	if err != nil {
		return err
	}

	password, _ := cmd.Flags().GetString("password")
	password = strings.TrimSpace(password)
	if password == "" {
		fd := int(os.Stdin.Fd())
		if !isTerminal(fd) {
			return fmt.Errorf("no password given: use --password when stdin is not a terminal")
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Password for %s on %s: ", username, provider)
		raw, err := readPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimSpace(string(raw))
	}
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if verify, _ := cmd.Flags().GetBool("verify"); verify {
		otp, _ := cmd.Flags().GetString("otp")
		if err := verifyCredentials(cmd, provider, domain.Credentials{Username: username, Password: password, OTP: otp}); err != nil {
			return err
		}
	}

	if err := newStore().SetPassword(provider, username, password); err != nil {
		return fmt.Errorf("failed to save password: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved password for %s on %s\n", username, provider)
	return nil
}

func verifyCredentials(cmd *cobra.Command, provider string, creds domain.Credentials) error {
	backend, err := providers.Get(provider, providers.Options{Account: creds.Username})
	if err != nil {
		return err
	}
	if _, err := backend.Authenticate(cmd.Context(), creds); err != nil {
		return fmt.Errorf("%s rejected the credentials: %w", backend.GetDisplayName(), err)
	}
	return nil
}
