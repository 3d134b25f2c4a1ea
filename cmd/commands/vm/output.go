package vm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"nathanbeddoewebdev/vmstate/internal/domain"
	"nathanbeddoewebdev/vmstate/internal/reconcile"
	"nathanbeddoewebdev/vmstate/internal/tui/styles"

	"github.com/spf13/cobra"
)

// errReported is returned once a failure has been written in the chosen
// format, so cobra exits non-zero without printing it again.
var errReported = errors.New("reconcile failed")

// failureRecord is the JSON shape of a failed pass.
type failureRecord struct {
	Failed     bool   `json:"failed"`
	Kind       string `json:"kind"`
	Message    string `json:"msg"`
	HTTPStatus int    `json:"http_status,omitempty"`
	HTTPMethod string `json:"http_method,omitempty"`
	URL        string `json:"url,omitempty"`
	Changed    bool   `json:"changed"`
}

func newFailureRecord(err error) failureRecord {
	rec := failureRecord{Failed: true, Kind: "error", Message: err.Error()}

	var pe *domain.ProviderError
	if re, ok := reconcile.AsError(err); ok {
		rec.Kind = string(re.Kind)
		rec.Changed = re.Changed
		pe, _ = re.ProviderError()
	} else if errors.As(err, &pe) {
		rec.Kind = string(reconcile.KindProvider)
	}

	if pe != nil {
		rec.HTTPStatus = pe.StatusCode
		rec.HTTPMethod = pe.Method
		rec.URL = pe.URL
	}
	return rec
}

func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("output")
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "", "text":
		return "text", nil
	case "json":
		return "json", nil
	}
	return "", fmt.Errorf("unsupported output format %q (use text or json)", format)
}

func writeJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// writeResult prints a successful pass.
func writeResult(cmd *cobra.Command, format string, result *reconcile.Result) {
	if format == "json" {
		writeJSON(cmd.OutOrStdout(), result)
		return
	}

	out := cmd.OutOrStdout()
	switch {
	case result.TimedOut:
		fmt.Fprintln(out, styles.WarningText.Render(result.Message))
	case result.Changed:
		fmt.Fprintln(out, styles.SuccessText.Render(result.Message))
	default:
		fmt.Fprintln(out, styles.Value.Render(result.Message))
	}

	if result.GroupCreated {
		fmt.Fprintln(out, styles.MutedText.Render("group created"))
	}
	for _, w := range result.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), styles.WarningText.Render("Warning: ")+w)
	}
	if result.VM != nil {
		printVMDetail(out, result.VM)
	}
}

// writeFailure prints a failed pass and returns errReported.
func writeFailure(cmd *cobra.Command, format string, err error) error {
	rec := newFailureRecord(err)

	if format == "json" {
		writeJSON(cmd.OutOrStdout(), rec)
		return errReported
	}

	w := cmd.ErrOrStderr()
	fmt.Fprintln(w, styles.ErrorText.Render("Error: ")+rec.Message)
	if rec.HTTPStatus != 0 || rec.URL != "" {
		fmt.Fprintf(w, "  %s %s (%d)\n", rec.HTTPMethod, rec.URL, rec.HTTPStatus)
	}
	if rec.Changed {
		fmt.Fprintln(w, styles.WarningText.Render("  The provider was changed before the failure."))
	}
	return errReported
}

// printVMDetail prints a vertical key-value table of the VM's fields.
func printVMDetail(out io.Writer, vm *domain.VM) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "  %s\t%s\n", styles.Label.Render("ID:"), vm.ID)
	fmt.Fprintf(w, "  %s\t%s\n", styles.Label.Render("Name:"), vm.Name)
	if vm.Hostname != "" {
		fmt.Fprintf(w, "  %s\t%s\n", styles.Label.Render("Hostname:"), vm.Hostname)
	}
	fmt.Fprintf(w, "  %s\t%s\n", styles.Label.Render("Group:"), vm.GroupName)
	fmt.Fprintf(w, "  %s\t%s\n", styles.Label.Render("Power:"), styles.PowerIndicator(string(vm.Power)))
	if vm.Deleted() {
		fmt.Fprintf(w, "  %s\t%s\n", styles.Label.Render("State:"), styles.ExistenceStyle(string(vm.Existence)).Render(string(vm.Existence)))
	}
	if vm.Cores > 0 {
		fmt.Fprintf(w, "  %s\t%d cores, %d GB\n", styles.Label.Render("Size:"), vm.Cores, vm.MemoryGB)
	}
	if vm.Zone != "" {
		fmt.Fprintf(w, "  %s\t%s\n", styles.Label.Render("Zone:"), vm.Zone)
	}
	if vm.PrimaryIPv4 != "" {
		fmt.Fprintf(w, "  %s\t%s\n", styles.Label.Render("IPv4:"), vm.PrimaryIPv4)
	}

	w.Flush()
}

// printVMTable prints one row per VM.
func printVMTable(out io.Writer, vms []domain.VM) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)

	fmt.Fprintln(w, styles.TableHeader.Render("GROUP")+"\t"+
		styles.TableHeader.Render("NAME")+"\t"+
		styles.TableHeader.Render("POWER")+"\t"+
		styles.TableHeader.Render("STATE")+"\t"+
		styles.TableHeader.Render("ZONE")+"\t"+
		styles.TableHeader.Render("IPV4"))

	for _, vm := range vms {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			vm.GroupName,
			vm.Name,
			styles.PowerStyle(string(vm.Power)).Render(string(vm.Power)),
			styles.ExistenceStyle(string(vm.Existence)).Render(string(vm.Existence)),
			dash(vm.Zone),
			dash(vm.PrimaryIPv4),
		)
	}

	w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
