package vm

import (
	"fmt"

	"nathanbeddoewebdev/vmstate/internal/config"

	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vm",
		Short: "Converge virtual machines onto a desired state",
		Long: `Create, delete, start and stop a virtual machine so that it matches
the state described by flags. Running the same command twice makes no
further changes.`,
		PersistentPreRunE: resolveProvider,
	}

	cmd.AddCommand(ApplyCommand())
	cmd.AddCommand(PlanCommand())
	cmd.AddCommand(ListCommand())

	pf := cmd.PersistentFlags()
	pf.String("provider", "", "Provider to use (overrides default)")
	pf.String("username", "", "Login username (default: config username)")
	pf.String("password", "", "Password or API token (default: $VMSTATE_PASSWORD, keychain, then prompt)")
	pf.String("otp", "", "One-time code for accounts with a second factor")
	pf.String("account", "", "Account that owns the VM (default: username)")
	pf.String("endpoint", "", "Provider API base URL (default: config endpoint)")
	pf.String("auth-endpoint", "", "Provider authentication URL (default: config auth-endpoint)")
	pf.StringP("output", "o", "text", "Output format: text or json")

	return cmd
}

// resolveProvider ensures the --provider flag has a value, falling back to the
// configured default when the flag was not explicitly passed.
func resolveProvider(cmd *cobra.Command, args []string) error {
	if cmd.Flag("provider").Changed {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.DefaultProvider != "" {
		cmd.Flag("provider").Value.Set(cfg.DefaultProvider)
		return nil
	}

	return fmt.Errorf("no provider specified: use --provider flag or set a default with 'vmstate config set default-provider <name>'")
}
