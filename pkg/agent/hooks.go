package agent

import (
	"context"
	"fmt"

	"github.com/royhairul/auto-ads-shopee/pkg/clock"
)

// Start runs the install hook on first launch and the startup hook
// afterwards.
func (d *Dispatcher) Start(ctx context.Context) error {
	flags, err := d.state.Flags(ctx)
	if err != nil {
		return err
	}
	if !flags.FirstInstallDone {
		return d.OnInstalled(ctx)
	}
	return d.OnStartup(ctx)
}

// OnInstalled marks today as already handled so the first cycle does not
// reset budgets, then schedules checks if the agent is active.
func (d *Dispatcher) OnInstalled(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.logger.Info("first launch, priming install state")
	if err := d.state.PrimeInstall(ctx, clock.Today(d.clock)); err != nil {
		return err
	}
	return d.enableIfActive(ctx)
}

// OnStartup schedules checks if the agent is active.
func (d *Dispatcher) OnStartup(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enableIfActive(ctx)
}

func (d *Dispatcher) enableIfActive(ctx context.Context) error {
	flags, err := d.state.Flags(ctx)
	if err != nil {
		return fmt.Errorf("failed to read agent flags: %w", err)
	}
	if flags.ExtensionActive {
		d.logger.Info("agent active, scheduling campaign checks")
		d.scheduler.Enable()
	} else {
		d.logger.Info("agent inactive, campaign checks not scheduled")
	}
	return nil
}
