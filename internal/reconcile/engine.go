// Package reconcile converges a single VM onto a desired state.
//
// A pass validates the desired state, resolves account, group and VM by
// name, chooses exactly one action from the transition table, executes it
// and, after a create with power on, waits for the machine to settle.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"nathanbeddoewebdev/vmstate/internal/domain"
	"nathanbeddoewebdev/vmstate/internal/lookup"
)

// Engine runs reconcile passes. It holds no per-VM state; everything a
// pass needs travels in the Invocation.
type Engine struct {
	poll  PollConfig
	log   zerolog.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithPollConfig sets the bounds of the post-create power-on wait.
func WithPollConfig(cfg PollConfig) Option {
	return func(e *Engine) { e.poll = cfg.normalized() }
}

// WithLogger sets the logger used for progress output.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New returns an Engine with the default poll bounds and a no-op logger.
func New(opts ...Option) *Engine {
	e := &Engine{
		poll:  DefaultPollConfig(),
		log:   zerolog.Nop(),
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Invocation is the explicit context of one pass: the provider handle
// and the desired-state descriptor.
type Invocation struct {
	Client  domain.Client
	Desired DesiredState
}

// Apply authenticates against backend, connects a client from the
// session and runs one reconcile pass. The session is discarded when
// Apply returns.
func (e *Engine) Apply(ctx context.Context, backend domain.Backend, creds domain.Credentials, desired DesiredState) (*Result, error) {
	if err := Validate(desired); err != nil {
		return nil, err
	}

	client, err := Connect(ctx, backend, creds)
	if err != nil {
		return nil, err
	}

	return e.Reconcile(ctx, Invocation{Client: client, Desired: desired})
}

// Connect exchanges creds for a session and builds a client from it.
func Connect(ctx context.Context, backend domain.Backend, creds domain.Credentials) (domain.Client, error) {
	session, err := backend.Authenticate(ctx, creds)
	if err != nil {
		return nil, providerError(fmt.Sprintf("failed to authenticate %s", creds.Username), err)
	}

	client, err := backend.Connect(session)
	if err != nil {
		return nil, &Error{Kind: KindProvider, Message: "failed to connect provider client", Err: err}
	}
	return client, nil
}

// Reconcile runs one pass and returns its result. All failures are
// returned as *Error.
func (e *Engine) Reconcile(ctx context.Context, inv Invocation) (*Result, error) {
	return e.run(ctx, inv, false)
}

// Plan resolves state and decides the action without mutating anything.
func (e *Engine) Plan(ctx context.Context, inv Invocation) (*Result, error) {
	return e.run(ctx, inv, true)
}

func (e *Engine) run(ctx context.Context, inv Invocation, dryRun bool) (*Result, error) {
	d := inv.Desired
	if err := Validate(d); err != nil {
		return nil, err
	}
	if inv.Client == nil {
		return nil, invariantErrorf("no provider client")
	}

	log := e.log.With().Str("vm", d.Name).Str("group", d.Group).Str("account", d.Account).Logger()
	result := &Result{DryRun: dryRun}

	account, err := e.resolveAccount(ctx, inv.Client, d.Account)
	if err != nil {
		return nil, err
	}

	group, found, err := e.findGroup(ctx, inv.Client, account, d.Group)
	if err != nil {
		return nil, err
	}

	var vm *domain.VM
	if !found {
		if !d.GroupCreate {
			return nil, lookupErrorf("group: %s doesn't exist and group_create is false", d.Group)
		}
		if d.Goal == GoalAbsent {
			// Nothing can live in a group that does not exist.
			result.Action = ActionNone
			result.Message = unchangedMessage(d, observe(nil))
			return result, nil
		}
		if dryRun {
			result.GroupCreated = true
		} else {
			log.Info().Msg("Creating group")
			created, err := inv.Client.CreateGroup(ctx, account, d.Group)
			if err != nil {
				return nil, providerError(fmt.Sprintf("failed to create group %s", d.Group), err)
			}
			group = *created
			result.GroupCreated = true
			result.Changed = true
		}
	} else {
		vms, err := inv.Client.ListVMs(ctx, group, true)
		if err != nil {
			return nil, providerError(fmt.Sprintf("failed to list vms in group %s", group.Name), err)
		}
		target, ok, err := lookup.FindVM(vms, d.Name)
		if err != nil {
			return nil, lookupErrorf("vm: %v", err)
		}
		if ok {
			vm = &target
		}
	}

	obs := observe(vm)
	plan, err := Decide(d, obs)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("existence", string(obs.Existence)).
		Str("power", string(obs.Power)).
		Str("goal", string(d.Goal)).
		Str("action", string(plan.Action)).
		Msg("Planned action")

	if plan.Action == ActionCreate {
		if err := checkSpec(ctx, inv.Client, d.spec(plan.PowerOn)); err != nil {
			markChanged(err, result.Changed)
			return nil, err
		}
	}

	result.Action = plan.Action
	result.VM = vm
	if plan.Warning != "" {
		result.warn(plan.Warning)
	}

	if dryRun {
		result.Changed = plan.Changed || result.GroupCreated
		result.Purged = plan.Action == ActionDelete && plan.Purge
		result.Message = plannedMessage(d.Name, plan)
		return result, nil
	}

	x := NewExecutor(inv.Client, log)
	switch plan.Action {
	case ActionNone:
		result.Message = unchangedMessage(d, obs)
		return result, nil

	case ActionCreate:
		created, err := x.Create(ctx, group, d.spec(plan.PowerOn))
		if err != nil {
			markChanged(err, result.Changed)
			return nil, err
		}
		result.Changed = true
		result.VM = created
		result.Message = fmt.Sprintf("%s was created", d.Name)
		if plan.PowerOn && d.Wait {
			return e.awaitPowerOn(ctx, inv.Client, group, result, log)
		}
		return result, nil

	case ActionDelete:
		msg, err := x.Delete(ctx, *vm, plan.Purge)
		if err != nil {
			return nil, err
		}
		result.Changed = true
		result.Purged = plan.Purge
		result.VM = nil
		result.Message = msg
		return result, nil

	case ActionPowerOn:
		got, err := x.PowerOn(ctx, *vm)
		if err != nil {
			return nil, err
		}
		result.Changed = true
		result.VM = got
		result.Message = fmt.Sprintf("%s was powered on", d.Name)
		return result, nil

	case ActionPowerOff:
		got, err := x.PowerOff(ctx, *vm)
		if err != nil {
			return nil, err
		}
		result.Changed = true
		result.VM = got
		result.Message = fmt.Sprintf("%s was powered off", d.Name)
		return result, nil
	}

	return nil, invariantErrorf("unreachable action %q", plan.Action)
}

// awaitPowerOn waits for a freshly created VM. Exhausting the attempts
// yields a degraded result, never a silent success.
func (e *Engine) awaitPowerOn(ctx context.Context, client domain.Client, group domain.Group, result *Result, log zerolog.Logger) (*Result, error) {
	p := newPoller(client, e.poll, log)
	p.sleep = e.sleep

	out, err := p.waitForPowerOn(ctx, group, result.VM.Name, result.VM)
	if err != nil {
		markChanged(err, true)
		return nil, err
	}

	result.VM = out.VM
	if out.Settled {
		result.Message = fmt.Sprintf("%s was created and powered on", result.VM.Name)
		return result, nil
	}

	log.Warn().Int("attempts", out.Attempts).Msg("Timed out waiting for vm to power on")
	result.TimedOut = true
	result.WarningKind = KindPollTimeout
	result.warn(fmt.Sprintf("timed out after %d attempts waiting for %s to power on", out.Attempts, result.VM.Name))
	return result, nil
}

func (e *Engine) resolveAccount(ctx context.Context, client domain.Client, name string) (domain.Account, error) {
	accounts, err := client.ListAccounts(ctx)
	if err != nil {
		return domain.Account{}, providerError("failed to list accounts", err)
	}
	account, ok, err := lookup.FindByName(accounts, name)
	if err != nil {
		return domain.Account{}, lookupErrorf("account: %v", err)
	}
	if !ok {
		return domain.Account{}, lookupErrorf("account: unable to find account %s", name)
	}
	return account, nil
}

func (e *Engine) findGroup(ctx context.Context, client domain.Client, account domain.Account, name string) (domain.Group, bool, error) {
	groups, err := client.ListGroups(ctx, account)
	if err != nil {
		return domain.Group{}, false, providerError(fmt.Sprintf("failed to list groups in account %s", account.Name), err)
	}
	group, ok, err := lookup.FindByName(groups, name)
	if err != nil {
		return domain.Group{}, false, lookupErrorf("group: %v", err)
	}
	return group, ok, nil
}

// checkSpec asks clients that implement domain.SpecChecker whether they
// can honour spec. Unsupported fields are a validation failure.
func checkSpec(ctx context.Context, client domain.Client, spec domain.VMSpec) error {
	checker, ok := client.(domain.SpecChecker)
	if !ok {
		return nil
	}
	err := checker.CheckSpec(ctx, spec)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrUnsupportedSpec) {
		return &Error{Kind: KindValidation, Message: "vm spec", Err: err}
	}
	return providerError("failed to check vm spec", err)
}

// markChanged records on a failure that an earlier mutation in the same
// pass already took effect.
func markChanged(err error, changed bool) {
	if re, ok := AsError(err); ok && changed {
		re.Changed = true
	}
}
