package reconcile

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"nathanbeddoewebdev/vmstate/internal/domain"
)

// Executor performs a single provider-side mutation and reports the
// resulting observed state.
type Executor struct {
	client domain.Client
	log    zerolog.Logger
}

// NewExecutor returns an Executor issuing calls through client.
func NewExecutor(client domain.Client, log zerolog.Logger) *Executor {
	return &Executor{client: client, log: log}
}

// Create provisions a new VM in group from spec.
func (x *Executor) Create(ctx context.Context, group domain.Group, spec domain.VMSpec) (*domain.VM, error) {
	x.log.Info().
		Str("vm", spec.Name).
		Str("group", group.Name).
		Int("cores", spec.Cores).
		Int("memory_gb", spec.MemoryGB).
		Int("discs", len(spec.Discs)).
		Str("distribution", spec.Distribution).
		Bool("power_on", spec.PowerOn).
		Msg("Creating vm")

	vm, err := x.client.CreateVM(ctx, group, spec)
	if err != nil {
		perr := providerError(fmt.Sprintf("failed to create vm %s", spec.Name), err)
		if re, ok := AsError(perr); ok && vm != nil {
			// Created, but a follow-up step such as reverse DNS failed.
			re.Changed = true
		}
		return nil, perr
	}
	if vm == nil {
		return nil, &Error{Kind: KindProvider, Message: fmt.Sprintf("provider returned no vm after creating %s", spec.Name)}
	}
	if vm.Name != spec.Name {
		return nil, &Error{
			Kind:    KindProvider,
			Message: fmt.Sprintf("provider returned vm %q after creating %q", vm.Name, spec.Name),
			Changed: true,
		}
	}

	return vm, nil
}

// Delete removes vm. The returned message says whether the machine was
// purged or only soft-deleted.
func (x *Executor) Delete(ctx context.Context, vm domain.VM, purge bool) (string, error) {
	x.log.Info().Str("vm", vm.Name).Bool("purge", purge).Msg("Deleting vm")

	if err := x.client.DeleteVM(ctx, vm, purge); err != nil {
		return "", providerError(fmt.Sprintf("failed to delete vm %s", vm.Name), err)
	}

	if purge {
		return fmt.Sprintf("%s was purged", vm.Name), nil
	}
	return fmt.Sprintf("%s was deleted", vm.Name), nil
}

// PowerOn starts vm. A VM that already reports power on is returned
// unchanged without a provider call.
func (x *Executor) PowerOn(ctx context.Context, vm domain.VM) (*domain.VM, error) {
	if vm.Power == domain.PowerOn {
		x.log.Debug().Str("vm", vm.Name).Msg("VM already powered on")
		return &vm, nil
	}

	x.log.Info().Str("vm", vm.Name).Msg("Powering on vm")
	got, err := x.client.PowerOn(ctx, vm)
	if err != nil {
		return nil, providerError(fmt.Sprintf("failed to power on vm %s", vm.Name), err)
	}
	return orSelf(got, vm), nil
}

// PowerOff stops vm. A VM that already reports power off is returned
// unchanged without a provider call.
func (x *Executor) PowerOff(ctx context.Context, vm domain.VM) (*domain.VM, error) {
	if vm.Power == domain.PowerOff {
		x.log.Debug().Str("vm", vm.Name).Msg("VM already powered off")
		return &vm, nil
	}

	x.log.Info().Str("vm", vm.Name).Msg("Powering off vm")
	got, err := x.client.PowerOff(ctx, vm)
	if err != nil {
		return nil, providerError(fmt.Sprintf("failed to power off vm %s", vm.Name), err)
	}
	return orSelf(got, vm), nil
}

func orSelf(got *domain.VM, vm domain.VM) *domain.VM {
	if got != nil {
		return got
	}
	return &vm
}
