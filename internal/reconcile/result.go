package reconcile

import (
	"fmt"

	"nathanbeddoewebdev/vmstate/internal/domain"
)

// Result is the structured outcome of a reconcile pass.
type Result struct {
	Changed bool       `json:"changed"`
	Message string     `json:"msg"`
	Action  Action     `json:"action"`
	Purged  bool       `json:"purged,omitempty"`
	VM      *domain.VM `json:"vm,omitempty"`
	// GroupCreated is set when the group was created on demand.
	GroupCreated bool     `json:"group_created,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
	// TimedOut marks a degraded success: the VM was created but did not
	// report power on within the poll ceiling.
	TimedOut bool `json:"timed_out,omitempty"`
	// WarningKind is KindPollTimeout for degraded results.
	WarningKind Kind `json:"warning_kind,omitempty"`
	DryRun      bool `json:"dry_run,omitempty"`
}

func (r *Result) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// unchangedMessage describes a pass that needed no mutation.
func unchangedMessage(d DesiredState, obs Observation) string {
	if obs.Existence == domain.ExistenceDeleted {
		return fmt.Sprintf("%s is already deleted", d.Name)
	}
	return fmt.Sprintf("%s is %s", d.Name, d.Goal)
}

// plannedMessage describes what a dry run would do.
func plannedMessage(name string, p Plan) string {
	switch p.Action {
	case ActionCreate:
		if p.PowerOn {
			return fmt.Sprintf("%s would be created and powered on", name)
		}
		return fmt.Sprintf("%s would be created", name)
	case ActionDelete:
		if p.Purge {
			return fmt.Sprintf("%s would be purged", name)
		}
		return fmt.Sprintf("%s would be deleted", name)
	case ActionPowerOn:
		return fmt.Sprintf("%s would be powered on", name)
	case ActionPowerOff:
		return fmt.Sprintf("%s would be powered off", name)
	}
	return fmt.Sprintf("%s needs no change", name)
}
