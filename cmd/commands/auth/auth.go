package auth

import (
	"fmt"
	"strings"

	"nathanbeddoewebdev/vmstate/internal/config"
	"nathanbeddoewebdev/vmstate/internal/services/auth"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Seams replaced in tests.
var (
	newStore     = auth.DefaultStore
	isTerminal   = func(fd int) bool { return term.IsTerminal(fd) }
	readPassword = term.ReadPassword
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored provider credentials",
		Long: `Manage stored provider credentials.

Passwords and API tokens are kept in the OS keychain, one per provider
and username, so vm commands do not have to prompt for them.`,
	}

	cmd.AddCommand(LoginCommand())
	cmd.AddCommand(LogoutCommand())
	cmd.AddCommand(StatusCommand())

	cmd.PersistentFlags().String("username", "", "Login username (default: config username)")

	return cmd
}

// resolveUsername returns --username, falling back to the configured one.
func resolveUsername(cmd *cobra.Command) (string, error) {
	if username, _ := cmd.Flags().GetString("username"); strings.TrimSpace(username) != "" {
		return strings.TrimSpace(username), nil
	}

	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Username == "" {
		return "", fmt.Errorf("no username: use --username or 'vmstate config set username <name>'")
	}
	return cfg.Username, nil
}
