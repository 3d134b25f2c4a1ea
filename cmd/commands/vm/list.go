package vm

import (
	"fmt"
	"sort"

	"nathanbeddoewebdev/vmstate/internal/domain"
	"nathanbeddoewebdev/vmstate/internal/lookup"
	"nathanbeddoewebdev/vmstate/internal/reconcile"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// listConcurrency bounds the parallel per-group listings.
const listConcurrency = 4

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List VMs in an account",
		Long: `List the virtual machines in every group of the account, or in one
group when --group is given.

Examples:
  vmstate vm list --provider bytemark
  vmstate vm list --group prod --include-deleted -o json`,
		RunE:          runList,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().String("group", "", "Only list VMs in this group")
	cmd.Flags().Bool("include-deleted", false, "Include soft-deleted VMs")

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return writeFailure(cmd, format, err)
	}

	ctx := cmd.Context()
	client, err := reconcile.Connect(ctx, s.backend, s.creds)
	if err != nil {
		return writeFailure(cmd, format, err)
	}

	accounts, err := client.ListAccounts(ctx)
	if err != nil {
		return writeFailure(cmd, format, fmt.Errorf("failed to list accounts: %w", err))
	}
	account, ok, err := lookup.FindByName(accounts, s.account)
	if err != nil {
		return writeFailure(cmd, format, err)
	}
	if !ok {
		return writeFailure(cmd, format, fmt.Errorf("unable to find account %s", s.account))
	}

	groups, err := client.ListGroups(ctx, account)
	if err != nil {
		return writeFailure(cmd, format, fmt.Errorf("failed to list groups: %w", err))
	}

	if name := flagOr(cmd, "group", ""); name != "" {
		group, ok, err := lookup.FindByName(groups, name)
		if err != nil {
			return writeFailure(cmd, format, err)
		}
		if !ok {
			return writeFailure(cmd, format, fmt.Errorf("group %s doesn't exist", name))
		}
		groups = []domain.Group{group}
	}

	includeDeleted, _ := cmd.Flags().GetBool("include-deleted")

	perGroup := make([][]domain.VM, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for i, group := range groups {
		g.Go(func() error {
			vms, err := client.ListVMs(gctx, group, includeDeleted)
			if err != nil {
				return fmt.Errorf("failed to list vms in group %s: %w", group.Name, err)
			}
			for j := range vms {
				if vms[j].GroupName == "" {
					vms[j].GroupName = group.Name
				}
			}
			perGroup[i] = vms
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return writeFailure(cmd, format, err)
	}

	vms := []domain.VM{}
	for _, list := range perGroup {
		vms = append(vms, list...)
	}
	sort.SliceStable(vms, func(i, j int) bool {
		if vms[i].GroupName != vms[j].GroupName {
			return vms[i].GroupName < vms[j].GroupName
		}
		return vms[i].Name < vms[j].Name
	})

	if format == "json" {
		writeJSON(cmd.OutOrStdout(), vms)
		return nil
	}

	if len(vms) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No VMs found.")
		return nil
	}
	printVMTable(cmd.OutOrStdout(), vms)
	return nil
}
