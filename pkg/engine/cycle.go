package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/royhairul/auto-ads-shopee/pkg/clock"
	"github.com/royhairul/auto-ads-shopee/pkg/events"
	"github.com/royhairul/auto-ads-shopee/pkg/notify"
	"github.com/royhairul/auto-ads-shopee/pkg/settings"
	"github.com/royhairul/auto-ads-shopee/pkg/shopee"
	"github.com/royhairul/auto-ads-shopee/pkg/state"
)

// ErrBudgetRejected is recorded when the platform answers a budget write
// with a non-zero code.
var ErrBudgetRejected = errors.New("budget change rejected")

// RunCycle runs one check over all ongoing campaigns. It never returns an
// error; failures are carried in the result.
func (e *Engine) RunCycle(ctx context.Context) (res CycleResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("cycle panicked", zap.Any("panic", r))
			e.errors.RecordPanic(ctx, r, debug.Stack(), map[string]any{"op": "RunCycle"})
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("cycle panicked: %v", r)
		}
		e.recorder.ObserveCycle(string(res.Outcome), time.Since(start))
		e.logger.Info("cycle finished",
			zap.String("outcome", string(res.Outcome)),
			zap.Int("updated", len(res.Updated)),
			zap.Int("alerts", res.Alerts),
			zap.Bool("reset_ran", res.ResetRan),
			zap.Error(res.Err))
	}()

	flags, err := e.store.Flags(ctx)
	if err != nil {
		return e.failed(ctx, err)
	}
	if !flags.ExtensionActive {
		res.Outcome = OutcomeInactive
		return res
	}

	today := clock.Today(e.clock)
	if flags.FirstInstallDone && flags.LastActiveDate != today {
		e.logger.Info("new day, running daily reset",
			zap.String("last_active_date", flags.LastActiveDate),
			zap.String("today", today))
		e.RunDailyReset(ctx)
		res.ResetRan = true
		if err := e.store.SetLastActiveDate(ctx, today); err != nil {
			e.recordError(ctx, err, map[string]any{"op": "setLastActiveDate"})
		}
	}

	s, err := e.store.LoadSettings(ctx)
	if err != nil {
		return e.failed(ctx, err)
	}

	acct, err := e.svc.GetAccountBalanceAndSpend(ctx)
	if err != nil || acct == nil {
		e.logger.Warn("balance unavailable", zap.Error(err))
		res.Outcome = OutcomeBalanceUnavailable
		res.Err = err
		return res
	}
	balance := shopee.ToMajor(acct.AccountBalance)
	if balance.Sign() <= 0 || balance.LessThanOrEqual(decimal.NewFromInt(s.DailyBudget)) {
		e.logger.Warn("balance too low to raise budgets",
			zap.String("balance", shopee.FormatRupiah(balance)),
			zap.Int64("daily_budget", s.DailyBudget))
		res.Outcome = OutcomeInsufficientBalance
		return res
	}

	live, err := e.svc.GetActiveLiveSessions(ctx)
	if err != nil || len(live) == 0 {
		e.logger.Debug("no live session", zap.Error(err))
		res.Outcome = OutcomeNoLiveSession
		res.Err = err
		return res
	}

	profile, err := e.svc.GetProfile(ctx)
	if err != nil || profile == nil || !profile.IsSeller {
		e.logger.Warn("seller profile invalid, disabling scheduler", zap.Error(err))
		e.scheduler.Disable()
		res.Outcome = OutcomeProfileInvalid
		res.Err = err
		return res
	}

	campaigns, err := e.svc.GetCampaignList(ctx, shopee.StateOngoing)
	if err != nil || len(campaigns) == 0 {
		e.logger.Info("no ongoing campaigns", zap.Error(err))
		res.Outcome = OutcomeNoCampaigns
		res.Err = err
		return res
	}

	book, err := e.store.LoadBookkeeping(ctx)
	if err != nil {
		return e.failed(ctx, err)
	}

	e.logger.Debug("evaluating campaigns",
		zap.String("mode", string(s.Mode)),
		zap.Float64("threshold", s.BudgetThreshold),
		zap.Float64("effectiveness", s.EffectivenessThreshold),
		zap.Int("interval_minutes", s.UpdateInterval),
		zap.Int("campaigns", len(campaigns)))

	now := e.clock.Now()
	for _, c := range campaigns {
		if ctx.Err() != nil {
			res.Err = ctx.Err()
			break
		}
		upd, alerted := e.evaluate(ctx, s, book, c, now)
		if alerted {
			res.Alerts++
		}
		if upd != nil {
			res.Updated = append(res.Updated, *upd)
		}
	}

	if len(res.Updated) > 0 {
		e.publisher.Publish(ctx, events.New(events.TypeCampaignsRefresh, res.Updated))
	}

	res.Outcome = OutcomeCompleted
	return res
}

func (e *Engine) failed(ctx context.Context, err error) CycleResult {
	e.logger.Error("cycle failed", zap.Error(err))
	e.recordError(ctx, err, map[string]any{"op": "RunCycle"})
	return CycleResult{Outcome: OutcomeFailed, Err: err}
}

// evaluate applies the alert and raise policy to one campaign. It returns
// the update when a raise succeeded and whether an effectiveness alert
// fired.
func (e *Engine) evaluate(ctx context.Context, s settings.Settings, book *state.Bookkeeping, c shopee.Campaign, now time.Time) (*events.CampaignUpdate, bool) {
	log := e.logger.With(zap.Int64("campaign_id", c.ID), zap.String("title", c.Title))
	nowMs := clock.Millis(now)
	percent := c.Percent()
	cooldownPassed := nowMs-book.Notified[c.ID] > s.Cooldown().Milliseconds()

	alerted := false
	if lowEffectiveness(s, c) && s.NotificationEnabled && cooldownPassed {
		log.Warn("low ad effectiveness", zap.Float64("roas", *c.ROAS))
		e.send(ctx, notify.Alert{
			Kind:       notify.KindLowEffectiveness,
			Template:   notify.TemplateLowEffectiveness,
			Title:      notify.TitleLowEffectiveness,
			CampaignID: c.ID,
			Vars: map[string]any{
				"title":     c.Title,
				"roas":      *c.ROAS,
				"threshold": s.EffectivenessThreshold,
			},
		})
		book.Notified[c.ID] = nowMs
		if err := e.store.SaveNotified(ctx, book.Notified); err != nil {
			e.recordError(ctx, err, map[string]any{"op": "saveNotified", "campaignId": c.ID})
		}
		alerted = true
	}

	if ok, reason := shouldRaise(s, c, book, nowMs); !ok {
		log.Debug("skip raise", zap.String("reason", reason), zap.Float64("percent", percent))
		return nil, alerted
	}

	current := shopee.ToMajor(c.DailyBudget)
	newBudget := current.Add(decimal.NewFromInt(s.DailyBudget))
	log.Info("raising daily budget",
		zap.String("from", shopee.FormatRupiah(current)),
		zap.String("to", shopee.FormatRupiah(newBudget)),
		zap.Float64("percent", percent))

	result, err := e.writer.SetDailyBudget(ctx, c.ID, newBudget)
	if err != nil {
		log.Error("budget update failed", zap.Error(err))
		e.recordError(ctx, err, map[string]any{"op": "setDailyBudget", "campaignId": c.ID})
		e.recorder.IncBudgetRaise("error")
		return nil, alerted
	}
	if !result.OK() {
		log.Error("budget update rejected", zap.Int("code", result.Code), zap.String("msg", result.Msg))
		e.recordError(ctx,
			fmt.Errorf("%w: code %d: %s", ErrBudgetRejected, result.Code, result.Msg),
			map[string]any{"op": "setDailyBudget", "campaignId": c.ID})
		e.recorder.IncBudgetRaise("rejected")
		return nil, alerted
	}

	book.Updated[c.ID] = nowMs
	book.LastBudgets[c.ID] = newBudget

	if s.UsesTime() {
		if err := e.store.SetLastUpdateTime(ctx, nowMs); err != nil {
			e.recordError(ctx, err, map[string]any{"op": "setLastUpdateTime"})
		}
	}

	if s.NotificationEnabled && cooldownPassed {
		e.send(ctx, raiseAlert(s, c, percent, newBudget, now))
		book.Notified[c.ID] = nowMs
	}

	if err := e.store.SaveBookkeeping(ctx, book); err != nil {
		e.recordError(ctx, err, map[string]any{"op": "saveBookkeeping", "campaignId": c.ID})
	}
	e.recorder.IncBudgetRaise("success")

	upd := events.CampaignUpdate{
		ID:        c.ID,
		NewBudget: newBudget.InexactFloat64(),
		Title:     c.Title,
		Percent:   percent,
	}
	e.publisher.Publish(ctx, events.New(events.TypeCampaignUpdated, upd))
	return &upd, alerted
}

func (e *Engine) send(ctx context.Context, a notify.Alert) {
	e.recorder.IncNotification(string(a.Kind))
	if err := e.notifier.Notify(ctx, a); err != nil {
		e.logger.Warn("notification failed", zap.String("kind", string(a.Kind)), zap.Error(err))
		e.recordError(ctx, err, map[string]any{"op": "notify", "campaignId": a.CampaignID})
	}
}

func lowEffectiveness(s settings.Settings, c shopee.Campaign) bool {
	return c.ROAS != nil && *c.ROAS < s.EffectivenessThreshold
}

// shouldRaise reports whether the mode triggers for c and the duplicate
// guards allow it. reason explains a refusal.
func shouldRaise(s settings.Settings, c shopee.Campaign, book *state.Bookkeeping, nowMs int64) (bool, string) {
	thresholdHit := c.Percent() >= s.BudgetThreshold
	intervalDue := nowMs-s.LastUpdateTime >= s.Interval().Milliseconds()

	var due bool
	switch s.Mode {
	case settings.ModePercentage:
		due = thresholdHit
	case settings.ModeTime:
		due = intervalDue
	case settings.ModeCombined:
		due = thresholdHit || intervalDue
	}
	if !due {
		return false, "not due"
	}

	if nowMs-book.Updated[c.ID] < AntiDoubleUpdateWindow.Milliseconds() {
		return false, "updated within anti-double-update window"
	}

	// Re-raising a budget that has not moved past our last write would
	// double-count it.
	if last, ok := book.LastBudgets[c.ID]; ok && shopee.ToMajor(c.DailyBudget).LessThanOrEqual(last) {
		return false, "no forward progress since last write"
	}
	return true, ""
}

func raiseAlert(s settings.Settings, c shopee.Campaign, percent float64, newBudget decimal.Decimal, now time.Time) notify.Alert {
	a := notify.Alert{
		Kind:       notify.KindBudgetRaised,
		CampaignID: c.ID,
		Vars: map[string]any{
			"title":       c.Title,
			"percent":     percent,
			"new_budget":  newBudget,
			"next_update": now.Add(s.Interval()),
		},
	}
	if s.Mode == settings.ModePercentage || (s.Mode == settings.ModeCombined && percent >= s.BudgetThreshold) {
		a.Template = notify.TemplateBudgetThreshold
		a.Title = notify.TitleBudgetThreshold
	} else {
		a.Template = notify.TemplateBudgetInterval
		a.Title = notify.TitleBudgetInterval
	}
	return a
}
