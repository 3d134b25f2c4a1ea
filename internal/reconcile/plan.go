package reconcile

import (
	"nathanbeddoewebdev/vmstate/internal/domain"
)

// Action is the single provider mutation chosen for a pass.
type Action string

const (
	ActionNone     Action = "none"
	ActionCreate   Action = "create"
	ActionDelete   Action = "delete"
	ActionPowerOn  Action = "power-on"
	ActionPowerOff Action = "power-off"
)

// Plan is the outcome of comparing desired and observed state.
type Plan struct {
	Action Action `json:"action"`
	// Purge applies to ActionDelete.
	Purge bool `json:"purge,omitempty"`
	// PowerOn is the initial power intent for ActionCreate.
	PowerOn bool `json:"power_on,omitempty"`
	Changed bool `json:"changed"`
	// Warning is set for cells that converge but deserve attention, such
	// as a present VM whose power state the provider cannot report.
	Warning string `json:"-"`
}

// Observation is the slice of observed state the decision depends on.
type Observation struct {
	Existence domain.Existence
	Power     domain.PowerState
}

// observe reduces a lookup result to an Observation.
func observe(vm *domain.VM) Observation {
	if vm == nil {
		return Observation{Existence: domain.ExistenceAbsent}
	}
	obs := Observation{Existence: vm.Existence, Power: vm.Power}
	if obs.Existence == "" {
		obs.Existence = domain.ExistencePresent
	}
	if obs.Power == "" {
		obs.Power = domain.PowerUnknown
	}
	return obs
}

// Decide maps desired × observed onto exactly one action. Every cell
// of the transition table is listed; anything else is an invariant
// violation rather than a silent no-op.
func Decide(d DesiredState, obs Observation) (Plan, error) {
	switch obs.Existence {
	case domain.ExistenceAbsent:
		switch d.Goal {
		case GoalAbsent:
			return Plan{Action: ActionNone}, nil
		case GoalPresent:
			return Plan{Action: ActionCreate, PowerOn: d.PowerOn, Changed: true}, nil
		case GoalRunning:
			return Plan{Action: ActionCreate, PowerOn: true, Changed: true}, nil
		case GoalStopped:
			return Plan{Action: ActionCreate, PowerOn: false, Changed: true}, nil
		}

	case domain.ExistenceDeleted:
		switch d.Goal {
		case GoalAbsent:
			if d.Purge {
				return Plan{Action: ActionDelete, Purge: true, Changed: true}, nil
			}
			return Plan{Action: ActionNone}, nil
		case GoalPresent, GoalRunning, GoalStopped:
			return Plan{}, lookupErrorf("vm: %s is deleted; purge it or restore it before it can be %s", d.Name, d.Goal)
		}

	case domain.ExistencePresent:
		if d.Goal == GoalAbsent {
			return Plan{Action: ActionDelete, Purge: d.Purge, Changed: true}, nil
		}

		switch obs.Power {
		case domain.PowerOn:
			switch d.Goal {
			case GoalPresent, GoalRunning:
				return Plan{Action: ActionNone}, nil
			case GoalStopped:
				return Plan{Action: ActionPowerOff, Changed: true}, nil
			}
		case domain.PowerOff:
			switch d.Goal {
			case GoalPresent, GoalStopped:
				return Plan{Action: ActionNone}, nil
			case GoalRunning:
				return Plan{Action: ActionPowerOn, Changed: true}, nil
			}
		case domain.PowerUnknown:
			switch d.Goal {
			case GoalPresent:
				return Plan{Action: ActionNone, Warning: "power state of " + d.Name + " is unknown"}, nil
			case GoalRunning:
				return Plan{Action: ActionPowerOn, Changed: true}, nil
			case GoalStopped:
				return Plan{Action: ActionPowerOff, Changed: true}, nil
			}
		}
	}

	return Plan{}, invariantErrorf("unreachable state: desired %q with observed existence %q, power %q", d.Goal, obs.Existence, obs.Power)
}
