package domain

// PowerState is the provider-reported power state of a VM.
type PowerState string

const (
	PowerOn      PowerState = "on"
	PowerOff     PowerState = "off"
	PowerUnknown PowerState = "unknown"
)

// Existence records whether a VM exists at the provider.
type Existence string

const (
	ExistencePresent Existence = "present"
	ExistenceAbsent  Existence = "absent"
	// ExistenceDeleted marks a soft-deleted machine that can still be
	// restored or purged.
	ExistenceDeleted Existence = "deleted"
)

// VM is the observed state of a virtual machine.
type VM struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Hostname        string     `json:"hostname,omitempty"`
	AccountName     string     `json:"account,omitempty"`
	GroupID         string     `json:"group_id,omitempty"`
	GroupName       string     `json:"group,omitempty"`
	Power           PowerState `json:"power"`
	Existence       Existence  `json:"existence"`
	Cores           int        `json:"cores,omitempty"`
	MemoryGB        int        `json:"memory_gb,omitempty"`
	Zone            string     `json:"zone,omitempty"`
	HardwareProfile string     `json:"hardware_profile,omitempty"`
	PrimaryIPv4     string     `json:"primary_ipv4,omitempty"`
}

func (v VM) GetName() string { return v.Name }

// Deleted reports whether the machine is soft-deleted.
func (v VM) Deleted() bool { return v.Existence == ExistenceDeleted }

// DiscSpec describes one disc to provision with a new VM.
type DiscSpec struct {
	StorageGrade string `json:"storage_grade"`
	SizeGB       int    `json:"size_gb"`
}

// VMSpec holds the parameters for creating a new VM. It is built from
// the desired state and sent to the provider in a single request.
type VMSpec struct {
	Name            string
	Zone            string
	Cores           int
	MemoryGB        int
	HardwareProfile string
	CDROMURL        string
	PowerOn         bool
	Discs           []DiscSpec
	Distribution    string
	RootPassword    string
	ReverseDNS      string
}
