package reconcile

import (
	"nathanbeddoewebdev/vmstate/internal/util"
)

// Validate checks a desired state before any provider call is made.
func Validate(d DesiredState) error {
	if err := util.ValidateVMName(d.Name); err != nil {
		return validationErrorf("vm name: %v", err)
	}
	if d.Group == "" {
		return validationErrorf("group is required")
	}
	if d.Account == "" {
		return validationErrorf("account is required")
	}

	if !validGoal(d.Goal) {
		return validationErrorf("unknown state %q (expected one of present, absent, running, stopped)", d.Goal)
	}

	// Sizing only matters when a VM may be created.
	if d.Goal == GoalAbsent {
		return nil
	}
	if d.Cores <= 0 {
		return validationErrorf("cores must be greater than 0, got %d", d.Cores)
	}
	if d.MemoryGB <= 0 {
		return validationErrorf("memory must be greater than 0, got %d", d.MemoryGB)
	}
	if len(d.Discs) == 0 {
		return validationErrorf("at least one disc is required")
	}
	for i, disc := range d.Discs {
		if disc.SizeGB <= 0 {
			return validationErrorf("disc %d: size must be greater than 0, got %d", i, disc.SizeGB)
		}
		if disc.StorageGrade == "" {
			return validationErrorf("disc %d: storage grade is required", i)
		}
	}

	return nil
}

func validGoal(g Goal) bool {
	for _, known := range Goals {
		if g == known {
			return true
		}
	}
	return false
}
