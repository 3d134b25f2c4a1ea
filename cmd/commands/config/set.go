package config

import (
	"fmt"
	"strings"

	"nathanbeddoewebdev/vmstate/internal/config"
	"nathanbeddoewebdev/vmstate/internal/providers"
	"nathanbeddoewebdev/vmstate/internal/util"

	"github.com/spf13/cobra"
)

// SetCommand returns the "config set" command.
func SetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: "Set a persistent configuration value. An empty value clears the key.\n\n" +
			config.KeysHelp() +
			"\nExamples:\n" +
			"  vmstate config set default-provider bytemark\n" +
			"  vmstate config set poll-interval 10s",
		Args:         cobra.ExactArgs(2),
		RunE:         runSet,
		SilenceUsage: true,
	}

	return cmd
}

// normalizers rewrite a value before it is validated and stored. Keys not
// present here are stored as typed, apart from surrounding whitespace.
var normalizers = map[string]func(value string) string{
	"default-provider": util.NormalizeKey,
}

// validators maps key names to optional pre-save validation functions.
var validators = map[string]func(value string) error{
	"default-provider": validateProvider,
}

func runSet(cmd *cobra.Command, args []string) error {
	spec := config.Lookup(args[0])
	if spec == nil {
		return fmt.Errorf("unknown configuration key %q (valid: %s)", args[0], strings.Join(config.KeyNames(), ", "))
	}

	value := strings.TrimSpace(args[1])
	if normalize, ok := normalizers[spec.Name]; ok {
		value = normalize(value)
	}
	if validate, ok := validators[spec.Name]; ok && value != "" {
		if err := validate(value); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := spec.Set(cfg, value); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return err
	}

	if value == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s cleared\n", spec.Name)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s set to %q\n", spec.Name, spec.Get(cfg))
	return nil
}

// validateProvider checks that the given name is a registered provider.
func validateProvider(name string) error {
	known := providers.List()
	for _, p := range known {
		if p == name {
			return nil
		}
	}
	return fmt.Errorf("unknown provider %q (registered: %s)", name, strings.Join(known, ", "))
}
