package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"nathanbeddoewebdev/vmstate/internal/domain"
	"nathanbeddoewebdev/vmstate/internal/lookup"
)

const (
	// DefaultPollAttempts caps how many times the poll loop re-reads the
	// VM after a create.
	DefaultPollAttempts = 25
	// DefaultPollInterval is the delay between poll attempts.
	DefaultPollInterval = 5 * time.Second
)

// PollConfig bounds the wait for an asynchronous power-on.
type PollConfig struct {
	MaxAttempts int
	Interval    time.Duration
}

// DefaultPollConfig returns the standard poll bounds.
func DefaultPollConfig() PollConfig {
	return PollConfig{MaxAttempts: DefaultPollAttempts, Interval: DefaultPollInterval}
}

func (c PollConfig) normalized() PollConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultPollAttempts
	}
	if c.Interval < 0 {
		c.Interval = 0
	}
	return c
}

// pollOutcome is the result of a wait. Settled is false when the attempt
// ceiling was reached.
type pollOutcome struct {
	VM       *domain.VM
	Settled  bool
	Attempts int
}

// poller re-reads a VM by name until it reports power on.
type poller struct {
	client domain.Client
	cfg    PollConfig
	log    zerolog.Logger
	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func newPoller(client domain.Client, cfg PollConfig, log zerolog.Logger) *poller {
	return &poller{client: client, cfg: cfg.normalized(), log: log, sleep: sleepContext}
}

// waitForPowerOn polls the group listing until the named VM is on. A VM
// missing from the listing counts as not yet settled. Provider errors
// abort the wait.
func (p *poller) waitForPowerOn(ctx context.Context, group domain.Group, name string, last *domain.VM) (pollOutcome, error) {
	out := pollOutcome{VM: last}

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := p.sleep(ctx, p.cfg.Interval); err != nil {
				return out, err
			}
		}
		out.Attempts = attempt

		vms, err := p.client.ListVMs(ctx, group, false)
		if err != nil {
			return out, providerError(fmt.Sprintf("failed to poll vm %s", name), err)
		}
		vm, ok, err := lookup.FindVM(vms, name)
		if err != nil {
			return out, lookupErrorf("vm: %v", err)
		}
		if !ok {
			p.log.Debug().Str("vm", name).Int("attempt", attempt).Msg("VM not listed yet")
			continue
		}

		out.VM = &vm
		if vm.Power == domain.PowerOn {
			out.Settled = true
			return out, nil
		}
		p.log.Debug().
			Str("vm", name).
			Str("power", string(vm.Power)).
			Int("attempt", attempt).
			Int("max_attempts", p.cfg.MaxAttempts).
			Msg("Waiting for vm to power on")
	}

	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
