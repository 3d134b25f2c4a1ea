package vm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"nathanbeddoewebdev/vmstate/internal/logging"
	"nathanbeddoewebdev/vmstate/internal/reconcile"
	"nathanbeddoewebdev/vmstate/internal/tui"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// confirmPurge is replaced in tests.
var confirmPurge = tui.ConfirmPurge

func ApplyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Converge a VM onto the desired state",
		Long: `Converge one virtual machine onto the state described by flags.

Exactly one action is taken per run: create, delete, power on, power off,
or nothing when the VM already matches. A purge asks for confirmation on
a terminal unless --yes is given.

Examples:
  # Make sure a VM exists and is running
  vmstate vm apply --provider bytemark --name web1 --group prod --state running

  # Create a stopped VM with an extra archive disc
  vmstate vm apply --name db1 --power-on=false --extra-disc archive:200

  # Destroy a VM and its discs without prompting
  vmstate vm apply --name web1 --state absent --purge --yes -o json`,
		RunE:          runApply,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addDesiredFlags(cmd)
	cmd.Flags().BoolP("yes", "y", false, "Skip the purge confirmation")

	return cmd
}

func runApply(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return writeFailure(cmd, format, err)
	}

	desired, err := desiredFromFlags(cmd, s)
	if err != nil {
		return writeFailure(cmd, format, err)
	}
	if err := reconcile.Validate(desired); err != nil {
		return writeFailure(cmd, format, err)
	}

	if desired.Goal == reconcile.GoalAbsent && desired.Purge {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes && isTerminal(int(os.Stdin.Fd())) {
			ok, err := confirmPurge(desired.Name, desired.Group)
			if errors.Is(err, tui.ErrAborted) || (err == nil && !ok) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Purge cancelled.")
				return nil
			}
			if err != nil {
				return writeFailure(cmd, format, err)
			}
		}
	}

	spin := format == "text" && isTerminal(int(os.Stderr.Fd()))
	log := newLogger(cmd, spin)
	engine := reconcile.New(
		reconcile.WithPollConfig(pollConfigFromFlags(cmd, s)),
		reconcile.WithLogger(log),
	)

	var result *reconcile.Result
	apply := func(ctx context.Context) error {
		var err error
		result, err = engine.Apply(ctx, s.backend, s.creds, desired)
		return err
	}

	if spin {
		title := fmt.Sprintf("Reconciling %s on %s...", desired.Name, s.backend.GetDisplayName())
		err = tui.RunWithSpinner(cmd.Context(), title, cmd.ErrOrStderr(), apply)
	} else {
		err = apply(cmd.Context())
	}
	if err != nil {
		return writeFailure(cmd, format, err)
	}

	writeResult(cmd, format, result)
	return nil
}

// newLogger builds the progress logger from the root logging flags.
// Info events are dropped while a spinner owns the terminal.
func newLogger(cmd *cobra.Command, quiet bool) zerolog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonLogs, _ := cmd.Flags().GetBool("log-json")
	q, _ := cmd.Flags().GetBool("quiet")

	return logging.New(cmd.ErrOrStderr(), logging.Options{
		Verbose: verbose,
		JSON:    jsonLogs,
		Quiet:   q || (quiet && !verbose),
	})
}
