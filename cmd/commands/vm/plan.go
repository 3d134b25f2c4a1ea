package vm

import (
	"nathanbeddoewebdev/vmstate/internal/reconcile"

	"github.com/spf13/cobra"
)

func PlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what apply would do without changing anything",
		Long: `Resolve the account, group and VM and report the action apply would
take. No provider state is modified.

Example:
  vmstate vm plan --provider hetzner --name web1 --state stopped`,
		RunE:          runPlan,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addDesiredFlags(cmd)

	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
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

	ctx := cmd.Context()
	client, err := reconcile.Connect(ctx, s.backend, s.creds)
	if err != nil {
		return writeFailure(cmd, format, err)
	}

	engine := reconcile.New(reconcile.WithLogger(newLogger(cmd, false)))
	result, err := engine.Plan(ctx, reconcile.Invocation{Client: client, Desired: desired})
	if err != nil {
		return writeFailure(cmd, format, err)
	}

	writeResult(cmd, format, result)
	return nil
}
