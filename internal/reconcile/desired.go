package reconcile

import (
	"nathanbeddoewebdev/vmstate/internal/domain"
)

// Goal is the lifecycle state the caller wants the VM in.
type Goal string

const (
	GoalPresent Goal = "present"
	GoalAbsent  Goal = "absent"
	GoalRunning Goal = "running"
	GoalStopped Goal = "stopped"
)

// Goals lists every accepted lifecycle goal.
var Goals = []Goal{GoalPresent, GoalAbsent, GoalRunning, GoalStopped}

// Defaults applied by the CLI when an option is not given.
const (
	DefaultCores           = 1
	DefaultMemoryGB        = 1
	DefaultStorageGrade    = "sata"
	DefaultDiscSizeGB      = 25
	DefaultZone            = "york"
	DefaultHardwareProfile = "virtio2013"
)

// DesiredState is the caller's target configuration for one VM.
type DesiredState struct {
	Name    string
	Group   string
	Account string

	Cores           int
	MemoryGB        int
	Discs           []domain.DiscSpec
	Distribution    string
	RootPassword    string
	Zone            string
	HardwareProfile string
	CDROMURL        string
	ReverseDNS      string

	// PowerOn is the initial power intent for a newly created VM when the
	// goal is "present".
	PowerOn bool
	Goal    Goal

	// Purge turns a delete into an irreversible destruction including
	// backing storage.
	Purge bool
	// Wait blocks after create until the VM reports power on.
	Wait bool
	// GroupCreate permits creating the group when it does not exist.
	GroupCreate bool
}

// spec builds the provider create request. powerOn is decided by the plan,
// which may override the PowerOn flag for the running/stopped goals.
func (d DesiredState) spec(powerOn bool) domain.VMSpec {
	discs := make([]domain.DiscSpec, len(d.Discs))
	copy(discs, d.Discs)

	return domain.VMSpec{
		Name:            d.Name,
		Zone:            d.Zone,
		Cores:           d.Cores,
		MemoryGB:        d.MemoryGB,
		HardwareProfile: d.HardwareProfile,
		CDROMURL:        d.CDROMURL,
		PowerOn:         powerOn,
		Discs:           discs,
		Distribution:    d.Distribution,
		RootPassword:    d.RootPassword,
		ReverseDNS:      d.ReverseDNS,
	}
}
