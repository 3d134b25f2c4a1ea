package config

import (
	"nathanbeddoewebdev/vmstate/internal/config"

	"github.com/spf13/cobra"
)

// NewCommand returns the "config" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vmstate configuration",
		Long: "View and modify persistent vmstate settings.\n\n" +
			"Configuration is stored at ~/.config/vmstate/config.json.\n\n" +
			config.KeysHelp(),
	}

	cmd.AddCommand(SetCommand())
	cmd.AddCommand(GetCommand())

	return cmd
}
