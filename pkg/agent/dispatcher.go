package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/royhairul/auto-ads-shopee/pkg/api"
	"github.com/royhairul/auto-ads-shopee/pkg/clock"
	"github.com/royhairul/auto-ads-shopee/pkg/engine"
	"github.com/royhairul/auto-ads-shopee/pkg/settings"
	"github.com/royhairul/auto-ads-shopee/pkg/shopee"
	"github.com/royhairul/auto-ads-shopee/pkg/state"
)

var errMissingCampaignID = errors.New("campaign id is required")

// CycleRunner runs decision cycles and daily resets.
type CycleRunner interface {
	RunCycle(ctx context.Context) engine.CycleResult
	RunDailyReset(ctx context.Context) engine.ResetResult
}

// StateStore is the agent-level state the dispatcher reads and writes.
type StateStore interface {
	Flags(ctx context.Context) (state.Flags, error)
	SetExtensionActive(ctx context.Context, active bool) error
	SetLastActiveDate(ctx context.Context, date string) error
	PrimeInstall(ctx context.Context, today string) error
	UpdateSettings(ctx context.Context, p settings.Patch) (settings.Settings, error)
}

// StatusSetter changes a campaign's running state.
type StatusSetter interface {
	SetCampaignStatus(ctx context.Context, campaignID int64, action shopee.StatusAction) (shopee.Result, error)
}

// Toggle turns the recurring check on and off.
type Toggle interface {
	Enable()
	Disable()
}

// Guarder runs fn, turning a panic into an error. *errlog.Book satisfies it.
type Guarder interface {
	Guard(ctx context.Context, op string, fn func(ctx context.Context) error) error
}

// DispatcherDeps are the collaborators of a Dispatcher.
type DispatcherDeps struct {
	Runner    CycleRunner
	State     StateStore
	Status    StatusSetter
	Scheduler Toggle
	Clock     clock.Clock
	Guard     Guarder
	Logger    *zap.Logger
}

// Dispatcher serializes scheduler ticks and inbound commands so at most one
// of them touches campaigns and bookkeeping at a time.
type Dispatcher struct {
	mu        sync.Mutex
	runner    CycleRunner
	state     StateStore
	status    StatusSetter
	scheduler Toggle
	clock     clock.Clock
	guard     Guarder
	logger    *zap.Logger

	lastMu sync.RWMutex
	last   *api.CycleSummary
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(d DispatcherDeps) *Dispatcher {
	clk := d.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	return &Dispatcher{
		runner:    d.Runner,
		state:     d.State,
		status:    d.Status,
		scheduler: d.Scheduler,
		clock:     clk,
		guard:     d.Guard,
		logger:    d.Logger.Named("dispatcher"),
	}
}

// SetScheduler attaches the scheduler once it exists.
func (d *Dispatcher) SetScheduler(t Toggle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scheduler = t
}

// Handle runs one inbound command. Known commands always produce a
// response; only an unknown type returns an error.
func (d *Dispatcher) Handle(ctx context.Context, msg api.Message) (api.Response, error) {
	d.logger.Debug("command received", zap.String("type", msg.Type))

	switch msg.Type {
	case api.TypeSetExtensionActive:
		return d.setExtensionActive(ctx, msg.Payload), nil
	case api.TypeForceCheck:
		return d.forceCheck(ctx), nil
	case api.TypeSetCampaignStatus:
		return d.setCampaignStatus(ctx, msg.Payload), nil
	default:
		return api.Response{}, fmt.Errorf("%w: %q", api.ErrUnknownCommand, msg.Type)
	}
}

// Tick is the scheduler callback. It runs a cycle only while the agent is
// active.
func (d *Dispatcher) Tick(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.guard.Guard(ctx, "tick", func(ctx context.Context) error {
		flags, err := d.state.Flags(ctx)
		if err != nil {
			return err
		}
		if !flags.ExtensionActive {
			return nil
		}
		d.remember(d.runner.RunCycle(ctx))
		return nil
	})
	if err != nil {
		d.logger.Error("tick failed", zap.Error(err))
	}
}

// Check runs one cycle immediately.
func (d *Dispatcher) Check(ctx context.Context) (engine.CycleResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var res engine.CycleResult
	err := d.guard.Guard(ctx, api.TypeForceCheck, func(ctx context.Context) error {
		res = d.runner.RunCycle(ctx)
		d.remember(res)
		return nil
	})
	return res, err
}

// Reset runs the daily reset now and marks today as handled.
func (d *Dispatcher) Reset(ctx context.Context) (engine.ResetResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var res engine.ResetResult
	err := d.guard.Guard(ctx, "reset", func(ctx context.Context) error {
		res = d.runner.RunDailyReset(ctx)
		return d.state.SetLastActiveDate(ctx, clock.Today(d.clock))
	})
	return res, err
}

// UpdateSettings merges p onto the stored settings. It waits for any running
// cycle so the cycle's lastUpdateTime stamp is not overwritten.
func (d *Dispatcher) UpdateSettings(ctx context.Context, p settings.Patch) (settings.Settings, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.UpdateSettings(ctx, p)
}

// LastCycle returns a summary of the most recent cycle, or nil.
func (d *Dispatcher) LastCycle() *api.CycleSummary {
	d.lastMu.RLock()
	defer d.lastMu.RUnlock()
	if d.last == nil {
		return nil
	}
	c := *d.last
	return &c
}

func (d *Dispatcher) remember(res engine.CycleResult) {
	d.lastMu.Lock()
	defer d.lastMu.Unlock()
	d.last = &api.CycleSummary{
		Outcome:  string(res.Outcome),
		At:       d.clock.Now(),
		Updated:  len(res.Updated),
		Alerts:   res.Alerts,
		ResetRan: res.ResetRan,
	}
}

func (d *Dispatcher) setExtensionActive(ctx context.Context, payload json.RawMessage) api.Response {
	active, err := api.ParseActive(payload)
	if err != nil {
		return api.Failure(err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	err = d.guard.Guard(ctx, api.TypeSetExtensionActive, func(ctx context.Context) error {
		flags, err := d.state.Flags(ctx)
		if err != nil {
			return err
		}
		if err := d.state.SetExtensionActive(ctx, active); err != nil {
			return err
		}

		if !active {
			d.logger.Info("agent deactivated, stopping scheduler")
			d.scheduler.Disable()
			return nil
		}

		d.logger.Info("agent activated, starting scheduler")
		today := clock.Today(d.clock)
		if flags.LastActiveDate != today {
			d.logger.Info("new day detected, running daily reset")
			d.runner.RunDailyReset(ctx)
			if err := d.state.SetLastActiveDate(ctx, today); err != nil {
				return err
			}
		}
		d.scheduler.Enable()
		return nil
	})
	if err != nil {
		return api.Failure(err)
	}
	return api.Response{Success: true}
}

func (d *Dispatcher) forceCheck(ctx context.Context) api.Response {
	d.logger.Info("manual campaign check requested")
	res, err := d.Check(ctx)
	if err != nil {
		return api.Failure(err)
	}
	return api.Response{
		Success: true,
		OK:      true,
		Outcome: string(res.Outcome),
		Updated: res.Updated,
	}
}

func (d *Dispatcher) setCampaignStatus(ctx context.Context, payload json.RawMessage) api.Response {
	var p api.CampaignStatusPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return api.Failure(fmt.Errorf("invalid %s payload: %w", api.TypeSetCampaignStatus, err))
	}
	action, err := shopee.ParseStatusAction(p.Action)
	if err != nil {
		return api.Failure(err)
	}
	if p.ID <= 0 {
		return api.Failure(errMissingCampaignID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var result shopee.Result
	err = d.guard.Guard(ctx, api.TypeSetCampaignStatus, func(ctx context.Context) error {
		var err error
		result, err = d.status.SetCampaignStatus(ctx, p.ID, action)
		return err
	})
	if err != nil {
		return api.Failure(err)
	}

	d.logger.Info("campaign status changed",
		zap.Int64("campaign_id", p.ID),
		zap.String("action", string(action)),
		zap.Int("code", result.Code))

	code := result.Code
	resp := api.Response{Success: result.OK(), Code: &code}
	if !result.OK() {
		resp.Error = result.Msg
	}
	return resp
}
