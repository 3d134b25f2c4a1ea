package vm

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"nathanbeddoewebdev/vmstate/internal/domain"
	"nathanbeddoewebdev/vmstate/internal/reconcile"

	"github.com/spf13/cobra"
)

const rootPasswordEnv = "VMSTATE_ROOT_PASSWORD"

// addDesiredFlags registers the desired-state options shared by apply
// and plan.
func addDesiredFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("name", "", "VM name (required)")
	f.String("group", "default", "Group that holds the VM")
	f.String("state", string(reconcile.GoalPresent), "Lifecycle goal: present, absent, running or stopped")

	f.Int("cores", reconcile.DefaultCores, "Number of CPU cores")
	f.Int("memory", reconcile.DefaultMemoryGB, "Memory in GB")
	f.String("storage-grade", "", "Storage grade of the primary disc (default: provider default)")
	f.Int("disc-size", reconcile.DefaultDiscSizeGB, "Size of the primary disc in GB")
	f.StringArray("extra-disc", nil, "Additional disc as grade:sizeGB (repeatable)")

	f.String("distribution", "", "Image to install (default: provider default)")
	f.String("root-password", "", "Root password for the installed image (default: $"+rootPasswordEnv+")")
	f.String("zone", "", "Zone to create the VM in (default: config default-zone, then provider default)")
	f.String("hardware-profile", "", "Hardware profile or server type (default: provider default)")
	f.String("cdrom-url", "", "URL of an ISO to attach as boot media")
	f.String("reverse-dns", "", "Reverse DNS name for the VM's addresses")

	f.Bool("power-on", true, "Power on a newly created VM")
	f.Bool("wait", true, "Wait for a newly created VM to report power on")
	f.Bool("group-create", false, "Create the group if it does not exist")
	f.Bool("purge", false, "With --state absent, destroy the VM and its discs for good")

	f.Int("poll-attempts", 0, "Maximum status checks while waiting (default: config, then 25)")
	f.Duration("poll-interval", 0, "Delay between status checks (default: config, then 5s)")

	cmd.MarkFlagRequired("name")
}

// desiredFromFlags builds the desired state. Unset image and placement
// options fall back to config, then to the provider's defaults.
func desiredFromFlags(cmd *cobra.Command, s *session) (reconcile.DesiredState, error) {
	f := cmd.Flags()

	name, _ := f.GetString("name")
	group, _ := f.GetString("group")
	state, _ := f.GetString("state")
	cores, _ := f.GetInt("cores")
	memory, _ := f.GetInt("memory")
	discSize, _ := f.GetInt("disc-size")
	extra, _ := f.GetStringArray("extra-disc")
	cdrom, _ := f.GetString("cdrom-url")
	rdns, _ := f.GetString("reverse-dns")
	powerOn, _ := f.GetBool("power-on")
	wait, _ := f.GetBool("wait")
	groupCreate, _ := f.GetBool("group-create")
	purge, _ := f.GetBool("purge")

	grade := flagOr(cmd, "storage-grade", firstNonEmpty(s.defaults.StorageGrade, reconcile.DefaultStorageGrade))
	discs := []domain.DiscSpec{{StorageGrade: grade, SizeGB: discSize}}
	for _, raw := range extra {
		disc, err := parseDisc(raw)
		if err != nil {
			return reconcile.DesiredState{}, err
		}
		discs = append(discs, disc)
	}

	rootPassword := flagOr(cmd, "root-password", os.Getenv(rootPasswordEnv))

	return reconcile.DesiredState{
		Name:            strings.TrimSpace(name),
		Group:           strings.TrimSpace(group),
		Account:         s.account,
		Cores:           cores,
		MemoryGB:        memory,
		Discs:           discs,
		Distribution:    flagOr(cmd, "distribution", s.defaults.Distribution),
		RootPassword:    rootPassword,
		Zone:            flagOr(cmd, "zone", firstNonEmpty(s.cfg.DefaultZone, s.defaults.Zone)),
		HardwareProfile: flagOr(cmd, "hardware-profile", s.defaults.HardwareProfile),
		CDROMURL:        strings.TrimSpace(cdrom),
		ReverseDNS:      strings.TrimSpace(rdns),
		PowerOn:         powerOn,
		Goal:            reconcile.Goal(strings.ToLower(strings.TrimSpace(state))),
		Purge:           purge,
		Wait:            wait,
		GroupCreate:     groupCreate,
	}, nil
}

// pollConfigFromFlags layers flags over config over the built-in defaults.
func pollConfigFromFlags(cmd *cobra.Command, s *session) reconcile.PollConfig {
	def := reconcile.DefaultPollConfig()
	cfg := reconcile.PollConfig{
		MaxAttempts: s.cfg.PollAttemptsOr(def.MaxAttempts),
		Interval:    s.cfg.PollIntervalOr(def.Interval),
	}

	if n, _ := cmd.Flags().GetInt("poll-attempts"); n > 0 {
		cfg.MaxAttempts = n
	}
	if d, _ := cmd.Flags().GetDuration("poll-interval"); d > 0 {
		cfg.Interval = d
	}
	return cfg
}

// parseDisc reads "grade:size", e.g. "archive:100".
func parseDisc(raw string) (domain.DiscSpec, error) {
	grade, size, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || grade == "" {
		return domain.DiscSpec{}, fmt.Errorf("invalid --extra-disc %q: expected grade:sizeGB", raw)
	}
	n, err := strconv.Atoi(size)
	if err != nil {
		return domain.DiscSpec{}, fmt.Errorf("invalid --extra-disc %q: size must be a whole number of GB", raw)
	}
	return domain.DiscSpec{StorageGrade: grade, SizeGB: n}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
