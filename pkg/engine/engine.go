// Package engine implements the periodic campaign check: it decides which
// live-stream campaigns need a budget raise or a low-effectiveness alert,
// applies the raise, and keeps the per-campaign bookkeeping that prevents
// duplicate work.
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/royhairul/auto-ads-shopee/pkg/clock"
	"github.com/royhairul/auto-ads-shopee/pkg/events"
	"github.com/royhairul/auto-ads-shopee/pkg/metrics"
	"github.com/royhairul/auto-ads-shopee/pkg/notify"
	"github.com/royhairul/auto-ads-shopee/pkg/settings"
	"github.com/royhairul/auto-ads-shopee/pkg/shopee"
	"github.com/royhairul/auto-ads-shopee/pkg/state"
)

// AntiDoubleUpdateWindow is the minimum gap between two raises of the same
// campaign.
const AntiDoubleUpdateWindow = 3 * time.Minute

// CampaignService reads account and campaign data.
type CampaignService interface {
	GetProfile(ctx context.Context) (*shopee.Profile, error)
	GetAccountBalanceAndSpend(ctx context.Context) (*shopee.AccountSummary, error)
	GetCampaignList(ctx context.Context, st shopee.CampaignState) ([]shopee.Campaign, error)
	// GetCampaignMinimumBudget returns nil when no minimum is available.
	GetCampaignMinimumBudget(ctx context.Context, campaignID int64) (*shopee.BudgetLimits, error)
	GetActiveLiveSessions(ctx context.Context) ([]shopee.LiveSession, error)
}

// BudgetWriter applies budget and status changes.
type BudgetWriter interface {
	SetDailyBudget(ctx context.Context, campaignID int64, major decimal.Decimal) (shopee.Result, error)
	SetCampaignStatus(ctx context.Context, campaignID int64, action shopee.StatusAction) (shopee.Result, error)
}

// Store is the persisted settings and bookkeeping. *state.State satisfies it.
type Store interface {
	LoadSettings(ctx context.Context) (settings.Settings, error)
	SetLastUpdateTime(ctx context.Context, ms int64) error
	Flags(ctx context.Context) (state.Flags, error)
	SetLastActiveDate(ctx context.Context, date string) error
	LoadBookkeeping(ctx context.Context) (*state.Bookkeeping, error)
	SaveBookkeeping(ctx context.Context, b *state.Bookkeeping) error
	SaveNotified(ctx context.Context, notified map[int64]int64) error
	ClearDailyBookkeeping(ctx context.Context) error
}

// Notifier delivers user-facing alerts.
type Notifier interface {
	Notify(ctx context.Context, a notify.Alert) error
}

// Publisher broadcasts outcome events. It must not block.
type Publisher interface {
	Publish(ctx context.Context, e events.Event)
}

// Scheduler is the part of the recurring trigger the engine controls.
type Scheduler interface {
	Disable()
}

// ErrorRecorder persists unexpected failures. *errlog.Book satisfies it.
type ErrorRecorder interface {
	Record(ctx context.Context, err error, info map[string]any)
	RecordPanic(ctx context.Context, recovered any, stack []byte, info map[string]any)
}

// Deps are the collaborators of an Engine. Service, Writer and Store are
// required.
type Deps struct {
	Service   CampaignService
	Writer    BudgetWriter
	Store     Store
	Notifier  Notifier
	Publisher Publisher
	Scheduler Scheduler
	Clock     clock.Clock
	Recorder  metrics.Recorder
	Errors    ErrorRecorder
	Logger    *zap.Logger
}

// Engine runs decision cycles and daily resets.
type Engine struct {
	svc       CampaignService
	writer    BudgetWriter
	store     Store
	notifier  Notifier
	publisher Publisher
	scheduler Scheduler
	clock     clock.Clock
	recorder  metrics.Recorder
	errors    ErrorRecorder
	logger    *zap.Logger
}

// New creates an engine, filling optional dependencies with no-ops.
func New(d Deps) *Engine {
	e := &Engine{
		svc:       d.Service,
		writer:    d.Writer,
		store:     d.Store,
		notifier:  d.Notifier,
		publisher: d.Publisher,
		scheduler: d.Scheduler,
		clock:     d.Clock,
		recorder:  d.Recorder,
		errors:    d.Errors,
		logger:    d.Logger,
	}
	if e.notifier == nil {
		e.notifier = nopNotifier{}
	}
	if e.publisher == nil {
		e.publisher = nopPublisher{}
	}
	if e.scheduler == nil {
		e.scheduler = nopScheduler{}
	}
	if e.clock == nil {
		e.clock = clock.Real{}
	}
	if e.recorder == nil {
		e.recorder = metrics.NewNoop()
	}
	if e.errors == nil {
		e.errors = nopErrors{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.Named("engine")
	return e
}

// SetScheduler attaches the scheduler after construction, since the
// scheduler's tick usually closes over the engine.
func (e *Engine) SetScheduler(s Scheduler) {
	if s == nil {
		s = nopScheduler{}
	}
	e.scheduler = s
}

func (e *Engine) recordError(ctx context.Context, err error, info map[string]any) {
	e.errors.Record(ctx, err, info)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, notify.Alert) error { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, events.Event) {}

type nopScheduler struct{}

func (nopScheduler) Disable() {}

type nopErrors struct{}

func (nopErrors) Record(context.Context, error, map[string]any)             {}
func (nopErrors) RecordPanic(context.Context, any, []byte, map[string]any) {}
