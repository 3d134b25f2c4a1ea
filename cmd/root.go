package cmd

import (
	"os"

	"nathanbeddoewebdev/vmstate/cmd/commands/auth"
	cfgcmd "nathanbeddoewebdev/vmstate/cmd/commands/config"
	"nathanbeddoewebdev/vmstate/cmd/commands/vm"
	"nathanbeddoewebdev/vmstate/internal/providers"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
func rootCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "vmstate",
		Short: "Converge virtual machines onto a desired state",
		Long: `vmstate is a command-line tool that makes a virtual machine at a cloud
provider match a declared state. Each run takes at most one action
(create, delete, power on or power off) and running it again once the
VM matches changes nothing.

Supported providers: Bytemark, Hetzner.

Quick start:
  vmstate config set default-provider bytemark
  vmstate config set username alice
  vmstate auth login bytemark                          # Store your password
  vmstate vm apply --name web1 --group prod            # Create if missing
  vmstate vm apply --name web1 --state stopped         # Power off
  vmstate vm apply --name web1 --state absent --purge  # Destroy`,
	}

	pf := cmd.PersistentFlags()
	pf.BoolP("verbose", "v", false, "Log every provider call and poll attempt")
	pf.BoolP("quiet", "q", false, "Only log warnings and errors")
	pf.Bool("log-json", false, "Write logs as JSON lines to stderr")

	cmd.AddCommand(auth.NewCommand())
	cmd.AddCommand(cfgcmd.NewCommand())
	cmd.AddCommand(vm.NewCommand())

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	providers.RegisterAll()

	var root = rootCmd()
	err := root.Execute()
	if err != nil {
		os.Exit(1)
	}
}
